package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
	"github.com/LL4nc33/oidanice-inkonnect/internal/wav"
)

// Recorder owns the capture device and produces one WAV blob per completed
// take. At most one capture stream is open at any instant.
type Recorder struct {
	device CaptureDevice
	format AudioFormat
	logger *slog.Logger

	mu        sync.Mutex
	stream    CaptureStream
	done      chan struct{}
	startedAt time.Time
	elapsed   int
	samples   []int16
	blob      []byte
	takePath  string
	errState  error
}

func NewRecorder(device CaptureDevice, format AudioFormat, logger *slog.Logger) *Recorder {
	return &Recorder{
		device: device,
		format: format,
		logger: logger,
	}
}

// Start opens the capture device and begins a new take. Calling Start while
// a take is already open is a no-op. A previous device failure is cleared
// here and nowhere else.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return nil
	}

	r.errState = nil
	r.blob = nil
	r.releaseTakeLocked()

	stream, err := r.device.Open(ctx, r.format)
	if err != nil {
		r.errState = fmt.Errorf("%w: %s", domain.ErrDeviceUnavailable, err)
		return r.errState
	}

	r.stream = stream
	r.startedAt = time.Now()
	r.elapsed = 0
	r.samples = nil
	r.done = make(chan struct{})

	go r.pump(stream, r.done)

	r.logger.Info("capture started", "sample_rate", r.format.SampleRate)
	return nil
}

func (r *Recorder) pump(stream CaptureStream, done chan struct{}) {
	defer close(done)
	for {
		block, err := stream.Read()
		if len(block) > 0 {
			r.mu.Lock()
			r.samples = append(r.samples, block...)
			r.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Stop finalizes the open take into a WAV blob. The device is released
// before this method returns, so downstream latency never holds the
// microphone open.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	stream := r.stream
	done := r.done
	r.stream = nil
	r.done = nil
	r.mu.Unlock()

	if stream == nil {
		return nil, domain.ErrNotRecording
	}

	if err := stream.Close(); err != nil {
		r.logger.Warn("closing capture stream", "error", err)
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()

	r.elapsed = int(time.Since(r.startedAt).Seconds())
	r.releaseTakeLocked()
	r.blob = wav.Encode(r.samples, r.format.SampleRate)
	r.samples = nil
	r.takePath = r.writeTake(r.blob)

	r.logger.Info("capture stopped", "bytes", len(r.blob), "seconds", r.elapsed)
	return r.blob, nil
}

// writeTake materializes the finished blob as a temp file so the take can
// be previewed before processing. Best-effort: a failed write only loses
// the preview.
func (r *Recorder) writeTake(blob []byte) string {
	f, err := os.CreateTemp("", "inkonnect-take-*.wav")
	if err != nil {
		r.logger.Warn("creating take file", "error", err)
		return ""
	}
	if _, err := f.Write(blob); err != nil {
		r.logger.Warn("writing take file", "error", err)
		f.Close()
		os.Remove(f.Name())
		return ""
	}
	f.Close()
	return f.Name()
}

func (r *Recorder) releaseTakeLocked() {
	if r.takePath != "" {
		os.Remove(r.takePath)
		r.takePath = ""
	}
}

// Reset discards any open take, blob, take file and error. Safe to call
// from any state, any number of times.
func (r *Recorder) Reset() {
	r.mu.Lock()
	stream := r.stream
	done := r.done
	r.stream = nil
	r.done = nil
	r.mu.Unlock()

	if stream != nil {
		stream.Close()
		<-done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.blob = nil
	r.samples = nil
	r.elapsed = 0
	r.errState = nil
	r.releaseTakeLocked()
}

// Close tears the recorder down, releasing the device and take file.
func (r *Recorder) Close() error {
	r.Reset()
	return nil
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

// Elapsed reports whole seconds recorded: live while recording, the final
// take length after stop.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return int(time.Since(r.startedAt).Seconds())
	}
	return r.elapsed
}

func (r *Recorder) Blob() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blob
}

// TakePath is the preview file of the last finished take, empty when none
// exists. The file lives only as long as its blob.
func (r *Recorder) TakePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.takePath
}

// Err reports the terminal device failure, nil otherwise.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errState
}
