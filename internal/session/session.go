// Package session owns the conversation state: the recording FSM, the turn
// transcript, and the language preference for one owner process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/smartspeak/internal/audio"
	"github.com/rbright/smartspeak/internal/fsm"
	"github.com/rbright/smartspeak/internal/pipeline"
)

const (
	// NoticeMicrophone is shown when the capture device cannot be acquired.
	NoticeMicrophone = "Failed to access microphone"
	// NoticeProcessing is shown when any pipeline stage fails.
	NoticeProcessing = "Failed to process voice"
	// NoticePlayback is shown when the reply cannot be played.
	NoticePlayback = "Failed to play reply"
)

// ErrInvalidState is returned when an operation is not allowed in the current
// state or another turn operation holds the session. Callers treat it as a no-op.
var ErrInvalidState = errors.New("invalid session state")

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one transcript entry.
type Turn struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Capture is the session-facing subset of capture.Controller.
type Capture interface {
	Arm(context.Context) error
	Disarm(context.Context) (audio.Payload, error)
	Release() error
}

// Runner is the session-facing subset of pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, emit func(pipeline.Event)) pipeline.Result
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowProcessing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	Hide(context.Context)
}

// Player plays a synthesized reply, replacing any reply still playing.
type Player interface {
	Play(context.Context, audio.Payload) error
}

// TurnListener is notified after every transcript append.
type TurnListener interface {
	OnTurn(Turn)
}

// Observer receives session-level counters.
type Observer interface {
	DeviceUnavailable()
	TurnFinished(outcome string, elapsed time.Duration)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowProcessing(context.Context)    {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) Hide(context.Context)              {}

type noopPlayer struct{}

func (noopPlayer) Play(context.Context, audio.Payload) error { return nil }

type noopListener struct{}

func (noopListener) OnTurn(Turn) {}

type noopObserver struct{}

func (noopObserver) DeviceUnavailable()                  {}
func (noopObserver) TurnFinished(string, time.Duration) {}

// Options wires session collaborators. Capture and Pipeline are required;
// the rest default to no-ops.
type Options struct {
	Capture   Capture
	Pipeline  Runner
	Indicator Indicator
	Player    Player
	Listener  TurnListener
	Observer  Observer
	Logger    *slog.Logger

	// Language is the initial preference; empty means "auto".
	Language string
	// DumpAudio writes every captured utterance to the debug state dir.
	DumpAudio bool
}

// TurnResult summarizes one EndTurn call.
type TurnResult struct {
	State         fsm.State
	UserText      string
	AssistantText string
	Language      string
	CapturedBytes int
	ReplyBytes    int
	Durations     map[pipeline.Stage]time.Duration
	StartedAt     time.Time
	FinishedAt    time.Time
	Err           error
}

// Session is one conversation. All methods are safe for concurrent use.
type Session struct {
	capture   Capture
	pipeline  Runner
	indicator Indicator
	player    Player
	listener  TurnListener
	observer  Observer
	logger    *slog.Logger
	dumpAudio bool

	id string

	// turnMu serializes StartTurn and EndTurn; contenders return ErrInvalidState.
	turnMu sync.Mutex

	mu        sync.RWMutex
	state     fsm.State
	language  string
	turns     []Turn
	armedAt   time.Time
	lastError string

	actions  chan action
	quit     chan struct{}
	quitOnce sync.Once
}

// New constructs an idle session with a fresh identifier.
func New(opts Options) *Session {
	s := &Session{
		capture:   opts.Capture,
		pipeline:  opts.Pipeline,
		indicator: opts.Indicator,
		player:    opts.Player,
		listener:  opts.Listener,
		observer:  opts.Observer,
		logger:    opts.Logger,
		dumpAudio: opts.DumpAudio,
		id:        uuid.NewString(),
		state:     fsm.StateIdle,
		language:  pipeline.LanguageAuto,
		actions:   make(chan action, 1),
		quit:      make(chan struct{}),
	}
	if s.indicator == nil {
		s.indicator = noopIndicator{}
	}
	if s.player == nil {
		s.player = noopPlayer{}
	}
	if s.listener == nil {
		s.listener = noopListener{}
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if tag := strings.TrimSpace(opts.Language); tag != "" {
		s.language = tag
	}
	return s
}

// ID returns the stable session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current FSM state snapshot.
func (s *Session) State() fsm.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Language returns the current language preference.
func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage replaces the language preference. A turn already processing
// keeps the language it started with.
func (s *Session) SetLanguage(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = pipeline.LanguageAuto
	}
	if !pipeline.ValidLanguageTag(tag) {
		return fmt.Errorf("invalid language tag %q", tag)
	}

	s.mu.Lock()
	s.language = tag
	s.mu.Unlock()
	s.logInfo("language changed", "language", tag)
	return nil
}

// Transcript returns a copy of the turns in insertion order.
func (s *Session) Transcript() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// LastError returns the most recent user-visible failure notice.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// StartTurn arms the capture device. On failure the session stays idle.
func (s *Session) StartTurn(ctx context.Context) error {
	if !s.turnMu.TryLock() {
		return fmt.Errorf("%w: turn in progress", ErrInvalidState)
	}
	defer s.turnMu.Unlock()

	if state := s.State(); !fsm.Accepts(state, fsm.EventArm) {
		return fmt.Errorf("%w: cannot start from state %s", ErrInvalidState, state)
	}
	if s.capture == nil {
		return errors.New("capture is not configured")
	}

	if err := s.capture.Arm(ctx); err != nil {
		s.observer.DeviceUnavailable()
		s.notice(ctx, NoticeMicrophone)
		s.logWarn("capture arm failed", "error", err.Error())
		return err
	}

	if err := s.transition(fsm.EventArm); err != nil {
		_ = s.capture.Release()
		return err
	}

	s.mu.Lock()
	s.armedAt = time.Now()
	s.mu.Unlock()

	s.indicator.ShowRecording(ctx)
	s.logInfo("turn recording")
	return nil
}

// EndTurn disarms capture and runs the pipeline to completion. The returned
// error is ErrInvalidState for an out-of-state call, or the turn failure.
func (s *Session) EndTurn(ctx context.Context) (TurnResult, error) {
	if !s.turnMu.TryLock() {
		return TurnResult{State: s.State()}, fmt.Errorf("%w: turn in progress", ErrInvalidState)
	}
	defer s.turnMu.Unlock()

	if err := s.transition(fsm.EventDisarm); err != nil {
		return TurnResult{State: s.State()}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	s.mu.RLock()
	result := TurnResult{StartedAt: s.armedAt, Language: s.language}
	sessionID := s.id
	s.mu.RUnlock()

	s.indicator.CueStop(ctx)
	s.indicator.ShowProcessing(ctx)

	payload, err := s.capture.Disarm(ctx)
	if err == nil && s.pipeline == nil {
		err = errors.New("pipeline is not configured")
	}
	if err != nil {
		stageErr := &pipeline.StageError{Stage: pipeline.StageCapture, Err: err}
		s.OnPipelineEvent(ctx, pipeline.TurnFailed(stageErr))
		result.Err = stageErr
		return s.finish(result), result.Err
	}
	result.CapturedBytes = len(payload.Data)
	s.dumpUtterance(payload)

	run := s.pipeline.Run(ctx, pipeline.Request{
		Payload:   payload,
		Language:  result.Language,
		SessionID: sessionID,
	}, func(event pipeline.Event) {
		s.OnPipelineEvent(ctx, event)
	})

	result.UserText = run.UserText
	result.AssistantText = run.AssistantText
	result.ReplyBytes = len(run.Audio.Data)
	result.Durations = run.Durations
	if run.Err != nil {
		result.Err = run.Err
	}

	// A runner that returned without a terminal event still must not park the session.
	if s.State() == fsm.StateProcessing {
		if result.Err == nil {
			result.Err = errors.New("pipeline returned without a terminal event")
		}
		_ = s.transition(fsm.EventFail)
		s.notice(ctx, NoticeProcessing)
	}

	return s.finish(result), result.Err
}

// OnPipelineEvent integrates one pipeline event. Events arriving outside
// processing are ignored.
func (s *Session) OnPipelineEvent(ctx context.Context, event pipeline.Event) {
	if s.State() != fsm.StateProcessing {
		return
	}

	switch event.Type {
	case pipeline.EventUserTextReady:
		s.appendTurn(RoleUser, event.Text)
	case pipeline.EventAssistantTextReady:
		s.appendTurn(RoleAssistant, event.Text)
	case pipeline.EventAudioReady:
		// The chime finishes before the reply starts.
		s.indicator.CueComplete(ctx)
		playErr := s.player.Play(ctx, event.Audio)
		if err := s.transition(fsm.EventComplete); err != nil {
			return
		}
		if playErr != nil {
			s.logWarn("reply playback failed", "error", playErr.Error())
			s.notice(ctx, NoticePlayback)
			return
		}
		s.indicator.Hide(ctx)
	case pipeline.EventTurnFailed:
		if err := s.transition(fsm.EventFail); err != nil {
			return
		}
		s.notice(ctx, NoticeProcessing)
	}
}

// Close releases the capture device if a recording is still armed. The state
// is left untouched; the session is not reused after Close.
func (s *Session) Close() error {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	s.indicator.Hide(cleanupCtx)

	if s.capture == nil {
		return nil
	}
	return s.capture.Release()
}

// transition applies one FSM event to the session state.
func (s *Session) transition(event fsm.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Session) appendTurn(role Role, content string) {
	turn := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	s.listener.OnTurn(turn)
}

// notice surfaces one user-visible failure.
func (s *Session) notice(ctx context.Context, message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
	s.indicator.ShowError(ctx, message)
}

func (s *Session) finish(result TurnResult) TurnResult {
	result.State = s.State()
	result.FinishedAt = time.Now()

	outcome := "completed"
	if result.Err != nil {
		outcome = "failed"
		var stageErr *pipeline.StageError
		if errors.As(result.Err, &stageErr) {
			outcome = string(stageErr.Stage) + "_failed"
		}
	}
	s.observer.TurnFinished(outcome, result.FinishedAt.Sub(result.StartedAt))
	return result
}

func (s *Session) dumpUtterance(payload audio.Payload) {
	if !s.dumpAudio {
		return
	}
	path, err := audio.WriteDebugDump("utterance", payload)
	if err != nil {
		s.logWarn("unable to write debug audio dump", "error", err.Error())
		return
	}
	s.logInfo("debug audio dump written", "path", path)
}

func (s *Session) logInfo(msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Info(msg, append(attrs, "session_id", s.id)...)
}

func (s *Session) logWarn(msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, append(attrs, "session_id", s.id)...)
}
