package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rbright/smartspeak/internal/pipeline"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	base, err := url.Parse(strings.TrimSpace(cfg.OpenAI.BaseURL))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("openai.base_url must be an absolute http(s) URL")
	}
	if base.Scheme == "http" && !isLoopbackHost(base.Hostname()) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("openai.base_url %q is not TLS protected", cfg.OpenAI.BaseURL)})
	}
	if strings.TrimSpace(cfg.OpenAI.APIKeyEnv) == "" {
		return nil, fmt.Errorf("openai.api_key_env must not be empty")
	}

	if strings.TrimSpace(cfg.Transcribe.Model) == "" {
		return nil, fmt.Errorf("transcribe.model must not be empty")
	}
	if strings.TrimSpace(cfg.Dialogue.Model) == "" {
		return nil, fmt.Errorf("dialogue.model must not be empty")
	}
	if cfg.Dialogue.MaxTokens <= 0 {
		return nil, fmt.Errorf("dialogue.max_tokens must be > 0")
	}
	if strings.TrimSpace(cfg.Speech.Model) == "" {
		return nil, fmt.Errorf("speech.model must not be empty")
	}
	if cfg.Speech.Format != SpeechFormatPCM && cfg.Speech.Format != SpeechFormatWAV {
		return nil, fmt.Errorf("speech.format must be one of: pcm, wav")
	}
	if cfg.Speech.Speed < 0.25 || cfg.Speech.Speed > 4.0 {
		return nil, fmt.Errorf("speech.speed must be within 0.25..4.0")
	}

	language := strings.TrimSpace(cfg.Session.Language)
	if !pipeline.ValidLanguageTag(language) {
		return nil, fmt.Errorf("session.language must be \"auto\" or a language tag")
	}
	defaultLanguage := strings.TrimSpace(cfg.Session.DefaultLanguage)
	if !pipeline.ValidLanguageTag(defaultLanguage) || strings.EqualFold(defaultLanguage, pipeline.LanguageAuto) {
		return nil, fmt.Errorf("session.default_language must be a language tag")
	}
	if cfg.Session.StageTimeoutMS < 0 {
		return nil, fmt.Errorf("session.stage_timeout_ms must be >= 0")
	}
	if cfg.Session.StageTimeoutMS == 0 {
		warnings = append(warnings, Warning{Message: "session.stage_timeout_ms is 0; stages run without a time limit"})
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != IndicatorBackendHypr && backend != IndicatorBackendDesktop {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == IndicatorBackendDesktop && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return nil, fmt.Errorf("metrics.listen must be host:port: %w", err)
		}
	}

	return warnings, nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
