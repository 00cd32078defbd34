package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/rbright/smartspeak/internal/audio"
	"github.com/rbright/smartspeak/internal/config"
	"github.com/rbright/smartspeak/internal/pipeline"
	"github.com/rbright/smartspeak/internal/session"
)

// playbackWaiter is implemented by players whose Play returns before the
// audio has drained.
type playbackWaiter interface {
	Wait(ctx context.Context) error
}

// commandAsk runs one turn on a recorded WAV file without an owner process,
// prints both sides of the exchange, and plays the reply to completion.
func (r Runner) commandAsk(ctx context.Context, cfg config.Config, logger *slog.Logger, path string, language string) int {
	if language == "" {
		language = cfg.Session.Language
	}
	if !pipeline.ValidLanguageTag(language) {
		fmt.Fprintf(r.Stderr, "error: invalid language tag %q\n", language)
		return 2
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	payload := audio.Payload{Data: data, MediaType: audio.MediaTypeWAV}
	if _, _, err := payload.Samples(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %s: %v\n", path, err)
		return 1
	}

	build := r.Build
	if build == nil {
		build = DefaultBuild
	}
	comps, err := build(cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build pipeline failed", "error", err.Error())
		return 1
	}
	if comps.Pipeline == nil {
		fmt.Fprintln(r.Stderr, "error: pipeline is not configured")
		return 1
	}

	printer := newTranscriptPrinter(r.Stdout)
	result := comps.Pipeline.Run(ctx, pipeline.Request{
		Payload:   payload,
		Language:  language,
		SessionID: uuid.NewString(),
	}, func(event pipeline.Event) {
		switch event.Type {
		case pipeline.EventUserTextReady:
			printer.OnTurn(session.Turn{Role: session.RoleUser, Content: event.Text})
		case pipeline.EventAssistantTextReady:
			printer.OnTurn(session.Turn{Role: session.RoleAssistant, Content: event.Text})
		}
	})
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %s: %v\n", result.Err.Kind(), result.Err)
		logger.Error("ask failed", "kind", result.Err.Kind(), "error", result.Err.Error())
		return 1
	}
	logger.Info("ask complete", "language", language, "reply_bytes", len(result.Audio.Data))

	if comps.Player == nil {
		return 0
	}
	if err := comps.Player.Play(ctx, result.Audio); err != nil {
		fmt.Fprintf(r.Stderr, "error: play reply: %v\n", err)
		return 1
	}
	if waiter, ok := comps.Player.(playbackWaiter); ok {
		if err := waiter.Wait(ctx); err != nil {
			fmt.Fprintf(r.Stderr, "error: play reply: %v\n", err)
			return 1
		}
	}
	return 0
}
