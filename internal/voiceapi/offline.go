package voiceapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/smartspeak/internal/audio"
)

const (
	offlineEnglishReply = "Docker containers package apps with their dependencies. Microservices are independent services that talk over an API."
	offlineHebrewReply  = "קונטיינרים של Docker מארזים אפליקציות עם תלויות. מיקרו-שירותים הם שירותים עצמאיים שמתקשרים דרך API."

	// offlineSpeech is the length of the silent reply rendered offline.
	offlineSpeech = 400 * time.Millisecond
)

// Offline stands in for Client when no API key is configured. Every stage
// succeeds locally: the transcript describes the captured audio, the reply is
// canned per language, and the speech is silence.
type Offline struct {
	Logger *slog.Logger
}

// Transcribe reports how much audio was captured instead of recognizing it.
func (o Offline) Transcribe(_ context.Context, payload audio.Payload, _ string) (string, error) {
	o.logDebug("offline transcription", "bytes", len(payload.Data))
	samples, format, err := payload.Samples()
	if err != nil || format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Sprintf("(offline) %d bytes of audio", len(payload.Data)), nil
	}
	seconds := float64(len(samples)) / float64(format.SampleRate*format.Channels)
	return fmt.Sprintf("(offline) %.1fs of audio", seconds), nil
}

// Respond returns the canned reply for language; anything but Hebrew gets English.
func (o Offline) Respond(_ context.Context, text string, _ string, language string) (string, error) {
	o.logDebug("offline reply", "language", language, "chars", len(text))
	if isHebrew(language) {
		return offlineHebrewReply, nil
	}
	return offlineEnglishReply, nil
}

// Synthesize renders a short silent clip so playback still completes the turn.
func (o Offline) Synthesize(context.Context, string, string) (audio.Payload, error) {
	samples := int(offlineSpeech.Seconds() * SpeechSampleRate)
	return audio.Payload{
		Data:      make([]byte, samples*2),
		MediaType: audio.PCMMediaType(SpeechSampleRate),
	}, nil
}

func (o Offline) logDebug(msg string, attrs ...any) {
	if o.Logger == nil {
		return
	}
	o.Logger.Debug(msg, attrs...)
}
