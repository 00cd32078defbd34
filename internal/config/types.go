// Package config resolves, parses, validates, and defaults smartspeak configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by smartspeak.
type Config struct {
	OpenAI     OpenAIConfig
	Transcribe TranscribeConfig
	Dialogue   DialogueConfig
	Speech     SpeechConfig
	Session    SessionConfig
	Audio      AudioConfig
	Indicator  IndicatorConfig
	Metrics    MetricsConfig
	Debug      DebugConfig
}

// OpenAIConfig locates the speech/dialogue API and its credentials.
type OpenAIConfig struct {
	BaseURL      string
	APIKeyEnv    string
	Organization string
}

// TranscribeConfig controls the speech-to-text stage.
type TranscribeConfig struct {
	Model  string
	Prompt string
}

// DialogueConfig controls the reply stage.
type DialogueConfig struct {
	Model        string
	MaxTokens    int
	SystemPrompt string
}

// SpeechConfig controls the text-to-speech stage.
type SpeechConfig struct {
	Model  string
	Format string
	Speed  float64
}

// SessionConfig holds per-session language and stage budgets.
type SessionConfig struct {
	Language        string
	DefaultLanguage string
	StageTimeoutMS  int
}

// StageTimeout converts StageTimeoutMS; zero disables the per-stage budget.
func (c SessionConfig) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutMS) * time.Millisecond
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
	Playback bool
}

// IndicatorConfig controls visual and audio feedback behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// MetricsConfig controls the Prometheus scrape endpoint; an empty Listen disables it.
type MetricsConfig struct {
	Listen string
}

// DebugConfig enables artifact dumps for troubleshooting.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal config finding surfaced to the user.
type Warning struct {
	Line    int
	Message string
}
