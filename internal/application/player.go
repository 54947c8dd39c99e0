package application

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
)

// Player owns the audio output. At most one output stream is alive at any
// instant: starting a new payload stops the previous one first.
type Player struct {
	device  OutputDevice
	decoder PayloadDecoder
	logger  *slog.Logger

	mu             sync.Mutex
	current        OutputStream
	lastAutoPlayed string
}

func NewPlayer(device OutputDevice, decoder PayloadDecoder, logger *slog.Logger) *Player {
	return &Player{
		device:  device,
		decoder: decoder,
		logger:  logger,
	}
}

// Play decodes a base64 payload and plays it, replacing any active stream.
func (p *Player) Play(ctx context.Context, payload string, format domain.AudioFormat) error {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decoding audio payload: %w", err)
	}

	samples, rate, err := p.decoder.Decode(data, format)
	if err != nil {
		return fmt.Errorf("decoding %s audio: %w", format, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		if err := p.current.Stop(); err != nil {
			p.logger.Warn("stopping previous playback", "error", err)
		}
		p.current = nil
	}

	stream, err := p.device.Play(ctx, samples, rate)
	if err != nil {
		return fmt.Errorf("starting playback: %w", err)
	}
	p.current = stream
	return nil
}

// AutoPlay plays the payload at most once per distinct payload value. A
// repeated payload never replays; a new payload always wins. Returns whether
// playback was triggered.
func (p *Player) AutoPlay(ctx context.Context, payload string, format domain.AudioFormat, enabled bool) (bool, error) {
	if !enabled || payload == "" {
		return false, nil
	}

	p.mu.Lock()
	if payload == p.lastAutoPlayed {
		p.mu.Unlock()
		return false, nil
	}
	p.lastAutoPlayed = payload
	p.mu.Unlock()

	if err := p.Play(ctx, payload, format); err != nil {
		return false, err
	}
	return true, nil
}

// Download writes the payload to dir as translation.wav or translation.mp3
// without touching playback state. Returns the written path.
func (p *Player) Download(payload string, format domain.AudioFormat, dir string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decoding audio payload: %w", err)
	}

	path := filepath.Join(dir, "translation."+string(format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Close stops and releases the active output stream.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	err := p.current.Stop()
	p.current = nil
	return err
}
