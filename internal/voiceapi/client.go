// Package voiceapi adapts the OpenAI audio and chat endpoints to the turn
// pipeline stages.
package voiceapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/smartspeak/internal/audio"
	openai "github.com/sashabaranov/go-openai"
)

// SpeechSampleRate is the fixed rate of OpenAI "pcm" speech output.
const SpeechSampleRate = 24000

// maxSpeechBytes caps one synthesized reply (about ten minutes of 24kHz PCM).
const maxSpeechBytes = 32 << 20

// ErrMissingAPIKey is returned when no API key is available.
var ErrMissingAPIKey = errors.New("openai api key is not set")

// Options configures the remote models used by each stage.
type Options struct {
	BaseURL      string
	APIKey       string
	Organization string
	UserAgent    string
	HTTPClient   *http.Client

	TranscribeModel  string
	TranscribePrompt string

	DialogueModel     string
	DialogueMaxTokens int
	SystemPrompt      string

	SpeechModel  string
	SpeechFormat string
	SpeechSpeed  float64

	Logger *slog.Logger
}

// Client implements pipeline.Transcriber, pipeline.Responder, and
// pipeline.Synthesizer against one OpenAI-compatible endpoint.
type Client struct {
	api  *openai.Client
	opts Options
}

// New builds a client. The API key must be non-empty.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	cfg.OrgID = strings.TrimSpace(opts.Organization)
	httpClient := opts.HTTPClient
	if agent := strings.TrimSpace(opts.UserAgent); agent != "" {
		wrapped := http.Client{}
		if httpClient != nil {
			wrapped = *httpClient
		}
		wrapped.Transport = userAgentTransport{agent: agent, next: wrapped.Transport}
		httpClient = &wrapped
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	if opts.TranscribeModel == "" {
		opts.TranscribeModel = openai.Whisper1
	}
	if opts.DialogueModel == "" {
		opts.DialogueModel = openai.GPT4oMini
	}
	if opts.SpeechModel == "" {
		opts.SpeechModel = string(openai.TTSModel1)
	}
	if opts.SpeechFormat == "" {
		opts.SpeechFormat = string(openai.SpeechResponseFormatPcm)
	}

	return &Client{api: openai.NewClientWithConfig(cfg), opts: opts}, nil
}

// Transcribe uploads the utterance as WAV and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, payload audio.Payload, language string) (string, error) {
	wav, err := asWAV(payload)
	if err != nil {
		return "", err
	}

	started := time.Now()
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.opts.TranscribeModel,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Prompt:   c.opts.TranscribePrompt,
		Language: language,
	})
	if err != nil {
		return "", fmt.Errorf("create transcription: %w", err)
	}
	c.logDebug("transcription complete", "model", c.opts.TranscribeModel, "language", resp.Language, "elapsed_ms", time.Since(started).Milliseconds())
	return resp.Text, nil
}

// Respond asks the chat model for a reply; sessionID is forwarded as the
// end-user identifier.
func (c *Client) Respond(ctx context.Context, text string, sessionID string, language string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.opts.DialogueModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(language, c.opts.SystemPrompt)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens: c.opts.DialogueMaxTokens,
		User:      sessionID,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Synthesize renders text with voice and returns the audio as PCM or WAV.
func (c *Client) Synthesize(ctx context.Context, text string, voice string) (audio.Payload, error) {
	format := openai.SpeechResponseFormat(c.opts.SpeechFormat)
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.opts.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: format,
		Speed:          c.opts.SpeechSpeed,
	})
	if err != nil {
		return audio.Payload{}, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(io.LimitReader(resp, maxSpeechBytes+1))
	if err != nil {
		return audio.Payload{}, fmt.Errorf("read speech body: %w", err)
	}
	if len(data) > maxSpeechBytes {
		return audio.Payload{}, fmt.Errorf("speech body exceeds %d bytes", maxSpeechBytes)
	}

	mediaType := audio.PCMMediaType(SpeechSampleRate)
	if format == openai.SpeechResponseFormatWav {
		mediaType = audio.MediaTypeWAV
	}
	return audio.Payload{Data: data, MediaType: mediaType}, nil
}

// Ping lists models to verify the endpoint and credentials.
func (c *Client) Ping(ctx context.Context) (int, error) {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return 0, fmt.Errorf("list models: %w", err)
	}
	return len(models.Models), nil
}

// asWAV wraps raw PCM in a WAV container; WAV passes through unchanged.
func asWAV(payload audio.Payload) ([]byte, error) {
	if strings.HasPrefix(payload.MediaType, audio.MediaTypeWAV) {
		return payload.Data, nil
	}
	samples, format, err := payload.Samples()
	if err != nil {
		return nil, err
	}
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(uint16(sample) >> 8)
	}
	return audio.EncodeWAV(pcm, format.SampleRate, format.Channels), nil
}

func (c *Client) logDebug(msg string, attrs ...any) {
	if c.opts.Logger == nil {
		return
	}
	c.opts.Logger.Debug(msg, attrs...)
}

// userAgentTransport stamps every request with the smartspeak agent string.
type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return next.RoundTrip(req)
}
