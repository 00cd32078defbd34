// Package fsm defines the recording state machine shared by session orchestration.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
)

const (
	EventArm      Event = "arm"
	EventDisarm   Event = "disarm"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
)

// Transition returns the next state for event, or an error when the pair is not allowed.
// The returned state equals current whenever err is non-nil.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventArm:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventDisarm:
			return StateProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventComplete, EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Accepts reports whether event is valid from current.
func Accepts(current State, event Event) bool {
	_, err := Transition(current, event)
	return err == nil
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
