package pipeline

import (
	"errors"
	"fmt"
)

// Stage names one remote call of a turn.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageRespond    Stage = "respond"
	StageSynthesize Stage = "synthesize"

	// StageCapture marks a turn that failed before any remote call, while
	// stopping or encoding the recording.
	StageCapture Stage = "capture"
)

// Stages lists the stages in execution order.
var Stages = []Stage{StageTranscribe, StageRespond, StageSynthesize}

var (
	ErrCapture       = errors.New("capture failed")
	ErrTranscription = errors.New("transcription failed")
	ErrDialogue      = errors.New("dialogue failed")
	ErrSynthesis     = errors.New("synthesis failed")
)

var (
	ErrNoAudio         = errors.New("no audio to transcribe")
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrEmptyReply      = errors.New("reply is empty")
	ErrEmptySpeech     = errors.New("synthesized audio is empty")
	errNotConfigured   = errors.New("stage not configured")
)

// StageError is the failure of exactly one stage. It matches both the stage
// sentinel and the underlying cause with errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

// Kind returns the failure class name shown in logs and IPC responses.
func (e *StageError) Kind() string {
	switch e.Stage {
	case StageCapture:
		return "CaptureError"
	case StageTranscribe:
		return "TranscriptionError"
	case StageRespond:
		return "DialogueError"
	case StageSynthesize:
		return "SynthesisError"
	default:
		return "UnknownError"
	}
}

func (e *StageError) sentinel() error {
	switch e.Stage {
	case StageCapture:
		return ErrCapture
	case StageTranscribe:
		return ErrTranscription
	case StageRespond:
		return ErrDialogue
	case StageSynthesize:
		return ErrSynthesis
	default:
		return fmt.Errorf("stage %q failed", e.Stage)
	}
}
