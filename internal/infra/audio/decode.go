package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
	"github.com/LL4nc33/oidanice-inkonnect/internal/wav"
)

// Decoder turns synthesized wav/mp3 payloads into playable PCM.
type Decoder struct{}

func NewDecoder() Decoder {
	return Decoder{}
}

func (Decoder) Decode(data []byte, format domain.AudioFormat) ([]int16, int, error) {
	switch format {
	case domain.AudioFormatWAV:
		return wav.Decode(data)
	case domain.AudioFormatMP3:
		return decodeMP3(data)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format %q", format)
	}
}

// decodeMP3 downmixes go-mp3's 16-bit stereo output to mono by taking the
// left channel.
func decodeMP3(data []byte) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("opening mp3 stream: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding mp3 stream: %w", err)
	}

	samples := make([]int16, 0, len(pcm)/4)
	for i := 0; i+4 <= len(pcm); i += 4 {
		samples = append(samples, int16(binary.LittleEndian.Uint16(pcm[i:i+2])))
	}
	return samples, dec.SampleRate(), nil
}
