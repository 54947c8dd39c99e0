//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LL4nc33/oidanice-inkonnect/internal/application"
)

// CaptureDevice stub when portaudio is not available
type CaptureDevice struct {
	logger *slog.Logger
}

func NewCaptureDevice(logger *slog.Logger) *CaptureDevice {
	return &CaptureDevice{logger: logger}
}

func (d *CaptureDevice) Open(_ context.Context, _ application.AudioFormat) (application.CaptureStream, error) {
	return nil, fmt.Errorf("capture device not available: rebuild with -tags portaudio")
}

// OutputDevice stub when portaudio is not available
type OutputDevice struct {
	logger *slog.Logger
}

func NewOutputDevice(logger *slog.Logger) *OutputDevice {
	return &OutputDevice{logger: logger}
}

func (d *OutputDevice) Play(_ context.Context, _ []int16, _ int) (application.OutputStream, error) {
	return nil, fmt.Errorf("output device not available: rebuild with -tags portaudio")
}
