package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/rbright/smartspeak/internal/audio"
	"github.com/rbright/smartspeak/internal/capture"
	"github.com/rbright/smartspeak/internal/config"
	"github.com/rbright/smartspeak/internal/indicator"
	"github.com/rbright/smartspeak/internal/ipc"
	"github.com/rbright/smartspeak/internal/metrics"
	"github.com/rbright/smartspeak/internal/pipeline"
	"github.com/rbright/smartspeak/internal/session"
	"github.com/rbright/smartspeak/internal/voiceapi"
)

// Components are the owner session's collaborators.
type Components struct {
	Capture   session.Capture
	Pipeline  session.Runner
	Indicator session.Indicator
	Player    session.Player
}

// BuildFunc constructs Components; observer receives per-stage timings.
type BuildFunc func(cfg config.Config, logger *slog.Logger, observer pipeline.Observer) (Components, error)

// remoteStages is implemented by both the OpenAI client and its offline stand-in.
type remoteStages interface {
	pipeline.Transcriber
	pipeline.Responder
	pipeline.Synthesizer
}

// DefaultBuild wires Pulse capture/playback, the OpenAI client, and the indicator.
// Without an API key the turn runs against voiceapi.Offline.
func DefaultBuild(cfg config.Config, logger *slog.Logger, observer pipeline.Observer) (Components, error) {
	stages, err := newStages(cfg, logger)
	if err != nil {
		return Components{}, err
	}

	device := capture.PulseDevice{
		Input:    cfg.Audio.Input,
		Fallback: cfg.Audio.Fallback,
		Logger:   logger,
	}
	encoder := audio.WAVEncoder{SampleRate: audio.CaptureSampleRate, Channels: 1}

	comps := Components{
		Capture: capture.NewController(device, encoder, logger),
		Pipeline: pipeline.New(stages, stages, stages, pipeline.Options{
			DefaultLanguage: cfg.Session.DefaultLanguage,
			StageTimeout:    cfg.Session.StageTimeout(),
			Observer:        observer,
			Logger:          logger,
		}),
		Indicator: indicator.New(cfg.Indicator, logger),
	}
	if cfg.Audio.Playback {
		comps.Player = audio.NewPlayer(logger)
	}
	return comps, nil
}

func newStages(cfg config.Config, logger *slog.Logger) (remoteStages, error) {
	client, err := voiceapi.New(voiceapi.OptionsFromConfig(cfg, logger))
	if errors.Is(err, voiceapi.ErrMissingAPIKey) {
		logger.Warn("api key not set; using offline replies", "env", cfg.OpenAI.APIKeyEnv)
		return voiceapi.Offline{Logger: logger}, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// runOwner holds the socket, serves IPC and metrics, and drives the session
// until quit or ctx cancellation.
func (r Runner) runOwner(ctx context.Context, cfg config.Config, logger *slog.Logger, startTurn bool) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	build := r.Build
	if build == nil {
		build = DefaultBuild
	}
	recorder := metrics.New()
	comps, err := build(cfg, logger, recorder)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build session failed", "error", err.Error())
		return 1
	}

	rescue := func(ctx context.Context) error {
		if comps.Indicator != nil {
			comps.Indicator.Hide(ctx)
		}
		return nil
	}
	acquireOpts := ipc.DefaultAcquireOptions()
	acquireOpts.Rescue = rescue
	lease, err := ipc.Acquire(ctx, socketPath, acquireOpts)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) && startTurn {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.Request{Command: "toggle"})
			return r.printForwarded(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := lease.Release(); err != nil {
			logger.Warn("release socket failed", "error", err.Error())
		}
	}()

	sess := session.New(session.Options{
		Capture:   comps.Capture,
		Pipeline:  comps.Pipeline,
		Indicator: comps.Indicator,
		Player:    comps.Player,
		Listener:  newTranscriptPrinter(r.Stdout),
		Observer:  recorder,
		Logger:    logger,
		Language:  cfg.Session.Language,
		DumpAudio: cfg.Debug.EnableAudioDump,
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	errCh := make(chan error, 2)
	servers := 1
	go func() { errCh <- ipc.Serve(serverCtx, lease, sess) }()

	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		metricsListener, err := net.Listen("tcp", listen)
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: metrics disabled: %v\n", err)
			logger.Warn("metrics listen failed", "addr", listen, "error", err.Error())
		} else {
			servers++
			go func() { errCh <- recorder.Serve(serverCtx, metricsListener, logger) }()
		}
	}

	logger.Info("session owner ready", "session_id", sess.ID(), "socket", socketPath, "language", sess.Language())
	if r.Ready != nil {
		r.Ready()
	}
	if startTurn {
		sess.RequestStart()
	}

	sess.Run(ctx, func(result session.TurnResult, err error) {
		logTurnResult(logger, result, err)
	})

	serverCancel()
	if waiter, ok := comps.Indicator.(interface{ Wait() }); ok {
		waiter.Wait()
	}
	exitCode := 0
	for range servers {
		if serverErr := <-errCh; serverErr != nil {
			fmt.Fprintf(r.Stderr, "error: server failed: %v\n", serverErr)
			exitCode = 1
		}
	}
	logger.Info("session owner stopped", "session_id", sess.ID(), "turns", len(sess.Transcript()))
	return exitCode
}

func logTurnResult(logger *slog.Logger, result session.TurnResult, err error) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"language", result.Language,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"bytes_captured", result.CapturedBytes,
		"bytes_reply", result.ReplyBytes,
		"user_text_length", len(result.UserText),
		"assistant_text_length", len(result.AssistantText),
	}
	for stage, elapsed := range result.Durations {
		fields = append(fields, string(stage)+"_ms", elapsed.Milliseconds())
	}

	if err != nil {
		logger.Error("turn failed", append(fields, "error", err.Error())...)
		return
	}
	logger.Info("turn complete", fields...)
}
