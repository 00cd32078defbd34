// Package pipeline runs one voice turn as three sequential remote calls:
// transcribe, respond, synthesize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/rbright/smartspeak/internal/audio"
)

const (
	// DefaultVoice is the fixed synthesis voice.
	DefaultVoice = "nova"
	// LanguageAuto defers language choice to the remote services.
	LanguageAuto = "auto"
	// DefaultLanguage replaces LanguageAuto before the dialogue call.
	DefaultLanguage = "en"
)

// Transcriber converts an utterance to text. language is "" for auto-detect.
type Transcriber interface {
	Transcribe(ctx context.Context, payload audio.Payload, language string) (string, error)
}

// Responder produces the assistant reply for one user utterance.
type Responder interface {
	Respond(ctx context.Context, text string, sessionID string, language string) (string, error)
}

// Synthesizer renders reply text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice string) (audio.Payload, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, payload audio.Payload, language string) (string, error)

// Transcribe implements Transcriber.
func (f TranscriberFunc) Transcribe(ctx context.Context, payload audio.Payload, language string) (string, error) {
	return f(ctx, payload, language)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, text string, sessionID string, language string) (string, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, text string, sessionID string, language string) (string, error) {
	return f(ctx, text, sessionID, language)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string, voice string) (audio.Payload, error)

// Synthesize implements Synthesizer.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text string, voice string) (audio.Payload, error) {
	return f(ctx, text, voice)
}

// Observer receives per-stage timings; err is nil on success.
type Observer interface {
	ObserveStage(stage Stage, elapsed time.Duration, err error)
}

// Options tunes a Pipeline.
type Options struct {
	// DefaultLanguage substitutes LanguageAuto; empty means "en".
	DefaultLanguage string
	// StageTimeout bounds each remote call; zero disables the bound.
	StageTimeout time.Duration
	Observer     Observer
	Logger       *slog.Logger
}

// Request is the input of one turn.
type Request struct {
	Payload   audio.Payload
	Language  string
	SessionID string
}

// Result is the tagged outcome of Run. Err is nil exactly when Completed.
type Result struct {
	Completed     bool
	UserText      string
	AssistantText string
	Audio         audio.Payload
	Durations     map[Stage]time.Duration
	Err           *StageError
}

// Pipeline is safe for sequential reuse across turns.
type Pipeline struct {
	transcriber Transcriber
	responder   Responder
	synthesizer Synthesizer
	opts        Options
}

// New wires the three stage collaborators.
func New(transcriber Transcriber, responder Responder, synthesizer Synthesizer, opts Options) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		responder:   responder,
		synthesizer: synthesizer,
		opts:        opts,
	}
}

// ResolveLanguage returns the language passed to the dialogue stage.
func ResolveLanguage(preference string, fallback string) string {
	if isAuto(preference) {
		if strings.TrimSpace(fallback) == "" {
			return DefaultLanguage
		}
		return strings.TrimSpace(fallback)
	}
	return preference
}

// TranscriptionLanguage returns the hint passed to the transcriber.
func TranscriptionLanguage(preference string) string {
	if isAuto(preference) {
		return ""
	}
	return preference
}

// ValidLanguageTag reports whether tag can be forwarded as a language hint.
// Tags are opaque to smartspeak; any non-empty token without whitespace passes.
func ValidLanguageTag(tag string) bool {
	return tag != "" && !strings.ContainsFunc(tag, unicode.IsSpace)
}

func isAuto(preference string) bool {
	trimmed := strings.TrimSpace(preference)
	return trimmed == "" || strings.EqualFold(trimmed, LanguageAuto)
}

// Run executes the turn, emitting events in order through emit.
// On failure exactly one EventTurnFailed is emitted and later stages are skipped.
// AssistantTextReady is held until synthesis succeeds.
func (p *Pipeline) Run(ctx context.Context, req Request, emit func(Event)) Result {
	if emit == nil {
		emit = func(Event) {}
	}
	result := Result{Durations: make(map[Stage]time.Duration, len(Stages))}

	fail := func(stage Stage, err error) Result {
		stageErr := &StageError{Stage: stage, Err: err}
		result.Err = stageErr
		p.logWarn("pipeline stage failed", "stage", string(stage), "kind", stageErr.Kind(), "error", err.Error())
		emit(TurnFailed(stageErr))
		return result
	}

	if req.Payload.Empty() {
		p.observe(StageTranscribe, 0, ErrNoAudio)
		return fail(StageTranscribe, ErrNoAudio)
	}

	userText, err := runStage(ctx, p, StageTranscribe, &result, func(ctx context.Context) (string, error) {
		if p.transcriber == nil {
			return "", errNotConfigured
		}
		text, err := p.transcriber.Transcribe(ctx, req.Payload, TranscriptionLanguage(req.Language))
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyTranscript
		}
		return text, nil
	})
	if err != nil {
		return fail(StageTranscribe, err)
	}
	result.UserText = userText
	emit(UserTextReady(userText))

	language := ResolveLanguage(req.Language, p.opts.DefaultLanguage)
	assistantText, err := runStage(ctx, p, StageRespond, &result, func(ctx context.Context) (string, error) {
		if p.responder == nil {
			return "", errNotConfigured
		}
		reply, err := p.responder.Respond(ctx, userText, req.SessionID, language)
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return "", ErrEmptyReply
		}
		return reply, nil
	})
	if err != nil {
		return fail(StageRespond, err)
	}
	result.AssistantText = assistantText

	speech, err := runStage(ctx, p, StageSynthesize, &result, func(ctx context.Context) (audio.Payload, error) {
		if p.synthesizer == nil {
			return audio.Payload{}, errNotConfigured
		}
		payload, err := p.synthesizer.Synthesize(ctx, assistantText, DefaultVoice)
		if err != nil {
			return audio.Payload{}, err
		}
		if payload.Empty() {
			return audio.Payload{}, ErrEmptySpeech
		}
		return payload, nil
	})
	if err != nil {
		return fail(StageSynthesize, err)
	}
	result.Audio = speech
	result.Completed = true
	// The reply joins the transcript only together with its audio.
	emit(AssistantTextReady(assistantText))
	emit(AudioReady(speech))
	return result
}

// runStage bounds one call by the stage timeout, records its duration, and
// reports it to the observer.
func runStage[T any](ctx context.Context, p *Pipeline, stage Stage, result *Result, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		p.observe(stage, 0, err)
		return zero, err
	}

	stageCtx := ctx
	if p.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.opts.StageTimeout)
		defer cancel()
	}

	started := time.Now()
	value, err := call(stageCtx)
	elapsed := time.Since(started)
	result.Durations[stage] = elapsed

	if err != nil {
		if ctxErr := stageCtx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		p.observe(stage, elapsed, err)
		return zero, err
	}
	p.observe(stage, elapsed, nil)
	return value, nil
}

func (p *Pipeline) observe(stage Stage, elapsed time.Duration, err error) {
	if p.opts.Observer == nil {
		return
	}
	p.opts.Observer.ObserveStage(stage, elapsed, err)
}

func (p *Pipeline) logWarn(msg string, attrs ...any) {
	if p.opts.Logger == nil {
		return
	}
	p.opts.Logger.Warn(msg, attrs...)
}
