//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/LL4nc33/oidanice-inkonnect/internal/application"
)

const framesPerBuffer = 1024

// CaptureDevice opens the default system microphone.
type CaptureDevice struct {
	logger *slog.Logger
}

func NewCaptureDevice(logger *slog.Logger) *CaptureDevice {
	return &CaptureDevice{logger: logger}
}

func (d *CaptureDevice) Open(_ context.Context, format application.AudioFormat) (application.CaptureStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(
		format.Channels,
		0,
		float64(format.SampleRate),
		framesPerBuffer,
		buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("starting input stream: %w", err)
	}

	d.logger.Info("microphone opened", "sample_rate", format.SampleRate)
	return &captureStream{stream: stream, buffer: buffer}, nil
}

type captureStream struct {
	stream *portaudio.Stream
	buffer []int16

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *captureStream) Read() ([]int16, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	out := make([]int16, len(s.buffer))
	copy(out, s.buffer)
	return out, nil
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.once.Do(func() {
		s.stream.Stop()
		s.stream.Close()
		portaudio.Terminate()
	})
	return nil
}

// OutputDevice plays PCM on the default system output.
type OutputDevice struct {
	logger *slog.Logger
}

func NewOutputDevice(logger *slog.Logger) *OutputDevice {
	return &OutputDevice{logger: logger}
}

func (d *OutputDevice) Play(_ context.Context, samples []int16, sampleRate int) (application.OutputStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("starting output stream: %w", err)
	}

	out := &outputStream{
		stream: stream,
		buffer: buffer,
		quit:   make(chan struct{}),
	}
	go out.run(samples)
	return out, nil
}

type outputStream struct {
	stream *portaudio.Stream
	buffer []int16
	quit   chan struct{}
	once   sync.Once
}

func (s *outputStream) run(samples []int16) {
	defer s.release()

	for off := 0; off < len(samples); off += len(s.buffer) {
		select {
		case <-s.quit:
			return
		default:
		}

		n := copy(s.buffer, samples[off:])
		for i := n; i < len(s.buffer); i++ {
			s.buffer[i] = 0
		}
		if err := s.stream.Write(); err != nil {
			return
		}
	}
}

func (s *outputStream) Stop() error {
	s.once.Do(func() { close(s.quit) })
	return nil
}

func (s *outputStream) release() {
	s.once.Do(func() { close(s.quit) })
	s.stream.Stop()
	s.stream.Close()
	portaudio.Terminate()
}
