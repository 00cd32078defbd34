package config

import (
	"fmt"
	"strings"
)

// fileConfig mirrors Config with optional fields so absent keys keep defaults.
// The same shape decodes from JSONC and YAML.
type fileConfig struct {
	OpenAI     *fileOpenAI     `json:"openai" yaml:"openai"`
	Transcribe *fileTranscribe `json:"transcribe" yaml:"transcribe"`
	Dialogue   *fileDialogue   `json:"dialogue" yaml:"dialogue"`
	Speech     *fileSpeech     `json:"speech" yaml:"speech"`
	Session    *fileSession    `json:"session" yaml:"session"`
	Audio      *fileAudio      `json:"audio" yaml:"audio"`
	Indicator  *fileIndicator  `json:"indicator" yaml:"indicator"`
	Metrics    *fileMetrics    `json:"metrics" yaml:"metrics"`
	Debug      *fileDebug      `json:"debug" yaml:"debug"`
}

type fileOpenAI struct {
	BaseURL      *string `json:"base_url" yaml:"base_url"`
	APIKeyEnv    *string `json:"api_key_env" yaml:"api_key_env"`
	Organization *string `json:"organization" yaml:"organization"`
}

type fileTranscribe struct {
	Model  *string `json:"model" yaml:"model"`
	Prompt *string `json:"prompt" yaml:"prompt"`
}

type fileDialogue struct {
	Model        *string `json:"model" yaml:"model"`
	MaxTokens    *int    `json:"max_tokens" yaml:"max_tokens"`
	SystemPrompt *string `json:"system_prompt" yaml:"system_prompt"`
}

type fileSpeech struct {
	Model  *string  `json:"model" yaml:"model"`
	Format *string  `json:"format" yaml:"format"`
	Speed  *float64 `json:"speed" yaml:"speed"`
}

type fileSession struct {
	Language        *string `json:"language" yaml:"language"`
	DefaultLanguage *string `json:"default_language" yaml:"default_language"`
	StageTimeoutMS  *int    `json:"stage_timeout_ms" yaml:"stage_timeout_ms"`
}

type fileAudio struct {
	Input    *string `json:"input" yaml:"input"`
	Fallback *string `json:"fallback" yaml:"fallback"`
	Playback *bool   `json:"playback" yaml:"playback"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable" yaml:"enable"`
	Backend        *string `json:"backend" yaml:"backend"`
	DesktopAppName *string `json:"desktop_app_name" yaml:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable" yaml:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms" yaml:"error_timeout_ms"`
}

type fileMetrics struct {
	Listen *string `json:"listen" yaml:"listen"`
}

type fileDebug struct {
	AudioDump *bool `json:"audio_dump" yaml:"audio_dump"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// applyTo overlays the present fields onto cfg.
func (payload fileConfig) applyTo(cfg *Config) []Warning {
	var warnings []Warning

	if p := payload.OpenAI; p != nil {
		setString(&cfg.OpenAI.BaseURL, p.BaseURL)
		setString(&cfg.OpenAI.APIKeyEnv, p.APIKeyEnv)
		setString(&cfg.OpenAI.Organization, p.Organization)
	}
	if p := payload.Transcribe; p != nil {
		setString(&cfg.Transcribe.Model, p.Model)
		setString(&cfg.Transcribe.Prompt, p.Prompt)
	}
	if p := payload.Dialogue; p != nil {
		setString(&cfg.Dialogue.Model, p.Model)
		setInt(&cfg.Dialogue.MaxTokens, p.MaxTokens)
		setString(&cfg.Dialogue.SystemPrompt, p.SystemPrompt)
	}
	if p := payload.Speech; p != nil {
		setString(&cfg.Speech.Model, p.Model)
		if p.Format != nil {
			cfg.Speech.Format = strings.ToLower(strings.TrimSpace(*p.Format))
		}
		if p.Speed != nil {
			cfg.Speech.Speed = *p.Speed
		}
	}
	if p := payload.Session; p != nil {
		setString(&cfg.Session.Language, p.Language)
		setString(&cfg.Session.DefaultLanguage, p.DefaultLanguage)
		setInt(&cfg.Session.StageTimeoutMS, p.StageTimeoutMS)
	}
	if p := payload.Audio; p != nil {
		setString(&cfg.Audio.Input, p.Input)
		setString(&cfg.Audio.Fallback, p.Fallback)
		setBool(&cfg.Audio.Playback, p.Playback)
	}
	if p := payload.Indicator; p != nil {
		setBool(&cfg.Indicator.Enable, p.Enable)
		if p.Backend != nil {
			cfg.Indicator.Backend = strings.ToLower(strings.TrimSpace(*p.Backend))
		}
		setString(&cfg.Indicator.DesktopAppName, p.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, p.SoundEnable)
		setInt(&cfg.Indicator.ErrorTimeoutMS, p.ErrorTimeoutMS)
	}
	if p := payload.Metrics; p != nil {
		setString(&cfg.Metrics.Listen, p.Listen)
	}
	if p := payload.Debug; p != nil {
		setBool(&cfg.Debug.EnableAudioDump, p.AudioDump)
	}

	if cfg.Audio.Input == "" {
		cfg.Audio.Input = "default"
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.input is empty; using %q", cfg.Audio.Input)})
	}
	return warnings
}
