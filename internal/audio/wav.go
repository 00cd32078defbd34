package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Format describes s16 PCM layout.
type Format struct {
	SampleRate int
	Channels   int
}

// WAVEncoder wraps captured PCM into a WAV payload.
type WAVEncoder struct {
	SampleRate int
	Channels   int
}

// Encode implements capture.Encoder.
func (e WAVEncoder) Encode(pcm []byte) (Payload, error) {
	if len(pcm) == 0 {
		return Payload{}, errors.New("no audio captured")
	}
	rate := e.SampleRate
	if rate <= 0 {
		rate = CaptureSampleRate
	}
	return Payload{Data: EncodeWAV(pcm, rate, e.Channels), MediaType: MediaTypeWAV}, nil
}

// EncodeWAV prefixes little-endian s16 PCM with a minimal 44-byte WAV header.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	out := make([]byte, 44, 44+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	return append(out, pcm...)
}

// DecodeWAV walks RIFF chunks and returns the s16 samples of the data chunk.
//
// Streamed WAV responses often carry a placeholder data size, so the data chunk is
// clipped to the bytes actually present.
func DecodeWAV(data []byte) ([]int16, Format, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("invalid WAV: missing RIFF/WAVE header")
	}

	var (
		format    Format
		haveFmt   bool
		offset    = 12
		audioType uint16
		bits      uint16
	)

	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, Format{}, errors.New("invalid WAV: short fmt chunk")
			}
			audioType = binary.LittleEndian.Uint16(data[body : body+2])
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, errors.New("invalid WAV: data chunk before fmt chunk")
			}
			if audioType != 1 {
				return nil, Format{}, fmt.Errorf("unsupported WAV audio format %d (only PCM)", audioType)
			}
			if bits != 16 {
				return nil, Format{}, fmt.Errorf("unsupported WAV bit depth %d (only 16-bit)", bits)
			}
			if format.Channels <= 0 || format.SampleRate <= 0 {
				return nil, Format{}, errors.New("invalid WAV: zero channels or sample rate")
			}
			end := body + size
			if size < 0 || end > len(data) || end < body {
				end = len(data)
			}
			return bytesToSamples(data[body:end]), format, nil
		}

		next := body + size + size%2
		if next <= offset || next > len(data) {
			break
		}
		offset = next
	}

	return nil, Format{}, errors.New("invalid WAV: missing data chunk")
}

// bytesToSamples reinterprets little-endian s16 bytes; a trailing odd byte is dropped.
func bytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}
