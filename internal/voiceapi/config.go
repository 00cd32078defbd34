package voiceapi

import (
	"log/slog"
	"os"
	"strings"

	"github.com/rbright/smartspeak/internal/config"
	"github.com/rbright/smartspeak/internal/version"
)

// APIKey reads the key from the environment variable named in cfg.
func APIKey(cfg config.Config) string {
	return strings.TrimSpace(os.Getenv(cfg.OpenAI.APIKeyEnv))
}

// OptionsFromConfig maps the config sections onto client options.
func OptionsFromConfig(cfg config.Config, logger *slog.Logger) Options {
	return Options{
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKey:            APIKey(cfg),
		Organization:      cfg.OpenAI.Organization,
		UserAgent:         version.UserAgent(),
		TranscribeModel:   cfg.Transcribe.Model,
		TranscribePrompt:  cfg.Transcribe.Prompt,
		DialogueModel:     cfg.Dialogue.Model,
		DialogueMaxTokens: cfg.Dialogue.MaxTokens,
		SystemPrompt:      cfg.Dialogue.SystemPrompt,
		SpeechModel:       cfg.Speech.Model,
		SpeechFormat:      cfg.Speech.Format,
		SpeechSpeed:       cfg.Speech.Speed,
		Logger:            logger,
	}
}
