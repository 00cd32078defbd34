package pipeline

import "github.com/rbright/smartspeak/internal/audio"

// EventType identifies a pipeline progress event.
type EventType string

const (
	EventUserTextReady      EventType = "user_text_ready"
	EventAssistantTextReady EventType = "assistant_text_ready"
	EventAudioReady         EventType = "audio_ready"
	EventTurnFailed         EventType = "turn_failed"
)

// Event is emitted in order while a turn runs.
type Event struct {
	Type  EventType
	Text  string
	Audio audio.Payload
	Err   *StageError
}

// UserTextReady carries the transcribed utterance.
func UserTextReady(text string) Event {
	return Event{Type: EventUserTextReady, Text: text}
}

// AssistantTextReady carries the dialogue reply.
func AssistantTextReady(text string) Event {
	return Event{Type: EventAssistantTextReady, Text: text}
}

// AudioReady carries the synthesized reply.
func AudioReady(payload audio.Payload) Event {
	return Event{Type: EventAudioReady, Audio: payload}
}

// TurnFailed carries the failing stage.
func TurnFailed(err *StageError) Event {
	return Event{Type: EventTurnFailed, Err: err}
}

// Message renders a failure event for notices and logs.
func (e Event) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
