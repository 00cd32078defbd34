package config

const (
	IndicatorBackendHypr    = "hypr"
	IndicatorBackendDesktop = "desktop"

	SpeechFormatPCM = "pcm"
	SpeechFormatWAV = "wav"
)

// Default returns the baseline configuration used before file overrides.
func Default() Config {
	return Config{
		OpenAI: OpenAIConfig{
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Transcribe: TranscribeConfig{
			Model: "whisper-1",
		},
		Dialogue: DialogueConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 300,
		},
		Speech: SpeechConfig{
			Model:  "tts-1",
			Format: SpeechFormatPCM,
			Speed:  1.0,
		},
		Session: SessionConfig{
			Language:        "auto",
			DefaultLanguage: "en",
			StageTimeoutMS:  60000,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
			Playback: true,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        IndicatorBackendHypr,
			DesktopAppName: "smartspeak-indicator",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
	}
}
