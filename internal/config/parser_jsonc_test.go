package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true, // trailing comment
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.Len(t, normalized, len(input))
	require.Equal(t, strings.Count(input, "\n"), strings.Count(normalized, "\n"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
	require.Equal(t, []any{"one", "two"}, decoded["items"])
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text, ]",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, "// and /* comment-like */ text, ]")
}

func TestNormalizeJSONCEscapedQuoteInString(t *testing.T) {
	input := `{"value":"say \"hi\" // not a comment",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
	require.Equal(t, `say "hi" // not a comment`, decoded["value"])
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestEnsureSingleJSONValueRejectsExtraPayload(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"one":1}{"two":2}`))
	var payload map[string]any
	require.NoError(t, decoder.Decode(&payload))

	err := ensureSingleJSONValue(decoder)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestOffsetToLineCol(t *testing.T) {
	content := "line1\nline2\nline3"
	line, col := offsetToLineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = offsetToLineCol(content, 8)
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = offsetToLineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}

func TestParseJSONCOverlaysDefaults(t *testing.T) {
	cfg, warnings, err := Parse(`
// smartspeak
{
  "openai": {"api_key_env": " SMARTSPEAK_KEY "},
  "dialogue": {"max_tokens": 120, "system_prompt": "Be brief."},
  "speech": {"format": " WAV ", "speed": 1.25},
  "session": {"language": "he"},
  "indicator": {"backend": " desktop ", "desktop_app_name": "  speak  "},
  "metrics": {"listen": "127.0.0.1:9464"},
  "debug": {"audio_dump": true},
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	want := Default()
	want.OpenAI.APIKeyEnv = "SMARTSPEAK_KEY"
	want.Dialogue.MaxTokens = 120
	want.Dialogue.SystemPrompt = "Be brief."
	want.Speech.Format = SpeechFormatWAV
	want.Speech.Speed = 1.25
	want.Session.Language = "he"
	want.Indicator.Backend = IndicatorBackendDesktop
	want.Indicator.DesktopAppName = "speak"
	want.Metrics.Listen = "127.0.0.1:9464"
	want.Debug.EnableAudioDump = true
	require.Equal(t, want, cfg)
}

func TestParseJSONCErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "unknown field", input: `{"asr": {}}`, wantErr: "unknown field"},
		{name: "type mismatch has position", input: "{\n  \"dialogue\": {\"max_tokens\": \"lots\"}\n}", wantErr: "line 2"},
		{name: "syntax error has position", input: "{\n\n  \"speech\": }", wantErr: "line 3"},
		{name: "multiple values", input: `{"debug":{}}{"debug":{}}`, wantErr: "multiple JSON values"},
		{name: "validation", input: `{"speech": {"format": "mp3"}}`, wantErr: "speech.format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.input, Default())
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseEmptyAudioInputWarns(t *testing.T) {
	cfg, warnings, err := Parse(`{"audio": {"input": "  "}}`, Default())
	require.NoError(t, err)
	require.Equal(t, "default", cfg.Audio.Input)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "audio.input is empty")
}
