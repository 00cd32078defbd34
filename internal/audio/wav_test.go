package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f, 0x00, 0x80}
	data := EncodeWAV(pcm, 16000, 1)
	require.Len(t, data, 44+len(pcm))
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]))

	samples, format, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Equal(t, Format{SampleRate: 16000, Channels: 1}, format)
	require.Equal(t, []int16{1, 32767, -32768}, samples)
}

func TestDecodeWAVClipsPlaceholderDataSize(t *testing.T) {
	data := EncodeWAV([]byte{0x02, 0x00, 0x03, 0x00}, 24000, 1)
	binary.LittleEndian.PutUint32(data[40:44], 0xffffffff)

	samples, format, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Equal(t, 24000, format.SampleRate)
	require.Equal(t, []int16{2, 3}, samples)
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	base := EncodeWAV([]byte{0x05, 0x00}, 8000, 1)
	// Splice a LIST chunk with an odd size between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	data := append([]byte{}, base[:36]...)
	data = append(data, list...)
	data = append(data, base[36:]...)

	samples, _, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Equal(t, []int16{5}, samples)
}

func TestDecodeWAVErrors(t *testing.T) {
	valid := EncodeWAV([]byte{0, 0}, 16000, 1)

	float := append([]byte{}, valid...)
	binary.LittleEndian.PutUint16(float[20:22], 3)

	eightBit := append([]byte{}, valid...)
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)

	tests := []struct {
		name    string
		data    []byte
		wantErr string
	}{
		{name: "not riff", data: []byte("hello world!"), wantErr: "missing RIFF/WAVE"},
		{name: "no data chunk", data: valid[:36], wantErr: "missing data chunk"},
		{name: "float samples", data: float, wantErr: "only PCM"},
		{name: "8-bit samples", data: eightBit, wantErr: "only 16-bit"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeWAV(tc.data)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestWAVEncoderEncode(t *testing.T) {
	payload, err := WAVEncoder{}.Encode([]byte{1, 0})
	require.NoError(t, err)
	require.Equal(t, MediaTypeWAV, payload.MediaType)

	_, format, err := DecodeWAV(payload.Data)
	require.NoError(t, err)
	require.Equal(t, CaptureSampleRate, format.SampleRate)
	require.Equal(t, 1, format.Channels)

	_, err = WAVEncoder{}.Encode(nil)
	require.Error(t, err)
}
