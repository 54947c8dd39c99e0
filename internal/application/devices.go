package application

import (
	"context"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
)

// AudioFormat describes the PCM shape exchanged with audio devices.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}

// CaptureStream is one open microphone take.
type CaptureStream interface {
	// Read blocks for the next block of samples.
	Read() ([]int16, error)
	// Close releases the device. Safe to call more than once.
	Close() error
}

// CaptureDevice grants exclusive access to the platform audio input.
type CaptureDevice interface {
	Open(ctx context.Context, format AudioFormat) (CaptureStream, error)
}

// OutputStream is audio currently being played.
type OutputStream interface {
	// Stop halts playback and releases the output device.
	Stop() error
}

// OutputDevice plays PCM on the platform audio output. Play returns as soon
// as playback has started.
type OutputDevice interface {
	Play(ctx context.Context, samples []int16, sampleRate int) (OutputStream, error)
}

// PayloadDecoder turns an encoded audio payload into playable PCM.
type PayloadDecoder interface {
	Decode(data []byte, format domain.AudioFormat) ([]int16, int, error)
}
