package audio

import (
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

const (
	MediaTypeWAV = "audio/wav"
	MediaTypePCM = "audio/pcm"

	// CaptureSampleRate is the rate of PCM delivered by Capture.
	CaptureSampleRate = 16000
)

// ErrUnsupportedMediaType is returned when a payload cannot be decoded to PCM samples.
var ErrUnsupportedMediaType = errors.New("unsupported audio media type")

// Payload is one finalized audio blob plus its declared encoding.
type Payload struct {
	Data      []byte
	MediaType string
}

// Empty reports whether the payload carries no audio bytes.
func (p Payload) Empty() bool {
	return len(p.Data) == 0
}

// PCMMediaType returns the media type for raw s16le mono PCM at rate.
func PCMMediaType(rate int) string {
	return fmt.Sprintf("%s;rate=%d", MediaTypePCM, rate)
}

// Samples decodes a WAV or raw PCM payload into interleaved s16 samples.
func (p Payload) Samples() ([]int16, Format, error) {
	mediaType, params, err := mime.ParseMediaType(p.MediaType)
	if err != nil {
		return nil, Format{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, p.MediaType)
	}

	switch mediaType {
	case MediaTypeWAV, "audio/x-wav", "audio/wave":
		return DecodeWAV(p.Data)
	case MediaTypePCM, "audio/l16":
		rate, err := strconv.Atoi(strings.TrimSpace(params["rate"]))
		if err != nil || rate <= 0 {
			return nil, Format{}, fmt.Errorf("pcm payload requires a positive rate parameter: %q", p.MediaType)
		}
		channels := 1
		if raw := strings.TrimSpace(params["channels"]); raw != "" {
			channels, err = strconv.Atoi(raw)
			if err != nil || channels <= 0 {
				return nil, Format{}, fmt.Errorf("invalid channels parameter: %q", p.MediaType)
			}
		}
		return bytesToSamples(p.Data), Format{SampleRate: rate, Channels: channels}, nil
	default:
		return nil, Format{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, p.MediaType)
	}
}
