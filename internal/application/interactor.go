package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
)

// Interactor drives one turn at a time through
// idle → processing → result/error → idle, composing the recorder, the
// pipeline client, the session manager and the player.
type Interactor struct {
	recorder *Recorder
	player   *Player
	pipeline PipelineClient
	sessions *SessionManager
	settings SettingsSource
	logger   *slog.Logger

	// historyEnabled turns on session auto-creation for the first utterance.
	historyEnabled bool

	// typingGuard reports whether a text entry currently has focus; the key
	// toggle is ignored while it returns true.
	typingGuard func() bool

	mu       sync.Mutex
	phase    domain.Phase
	lastBlob []byte
	result   *domain.PipelineResult
	lastErr  error
}

func NewInteractor(
	recorder *Recorder,
	player *Player,
	pipeline PipelineClient,
	sessions *SessionManager,
	settings SettingsSource,
	historyEnabled bool,
	typingGuard func() bool,
	logger *slog.Logger,
) *Interactor {
	if typingGuard == nil {
		typingGuard = func() bool { return false }
	}
	return &Interactor{
		recorder:       recorder,
		player:         player,
		pipeline:       pipeline,
		sessions:       sessions,
		settings:       settings,
		historyEnabled: historyEnabled,
		typingGuard:    typingGuard,
		logger:         logger,
		phase:          domain.PhaseIdle,
	}
}

// StartCapture begins recording. Capture is a sub-state of idle: the phase
// does not change until the take is submitted.
func (i *Interactor) StartCapture(ctx context.Context) error {
	i.mu.Lock()
	if i.phase != domain.PhaseIdle {
		i.mu.Unlock()
		return domain.ErrBusy
	}
	i.mu.Unlock()

	return i.recorder.Start(ctx)
}

// StopCapture finalizes the take and runs the full turn: session
// auto-creation when needed, the pipeline round trip, message append and
// autoplay. It blocks until the turn reaches a terminal phase.
func (i *Interactor) StopCapture(ctx context.Context) error {
	i.mu.Lock()
	if i.phase == domain.PhaseProcessing {
		i.mu.Unlock()
		return domain.ErrBusy
	}
	i.mu.Unlock()

	blob, err := i.recorder.Stop()
	if err != nil {
		return err
	}

	return i.process(ctx, blob)
}

func (i *Interactor) process(ctx context.Context, blob []byte) error {
	i.mu.Lock()
	if i.phase == domain.PhaseProcessing {
		i.mu.Unlock()
		return domain.ErrBusy
	}
	i.phase = domain.PhaseProcessing
	i.result = nil
	i.lastErr = nil
	i.lastBlob = blob
	i.mu.Unlock()

	snapshot := i.settings.Snapshot()

	sessionID := ""
	if session, ok := i.sessions.Active(); ok {
		sessionID = session.ID
	} else if i.historyEnabled {
		// Session creation happens before the pipeline request that will
		// reference it. A failure is non-fatal: the turn proceeds without
		// a session.
		session, err := i.sessions.Create(ctx, snapshot.SourceLang, snapshot.TargetLang, snapshot.TTSEnabled, true)
		if err != nil {
			i.logger.Warn("session auto-create failed, continuing without history", "error", err)
		} else {
			sessionID = session.ID
		}
	}

	result, err := i.pipeline.Run(ctx, blob, snapshot, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNoSpeech) {
			// Silent bounce: discard the take, no error surface.
			i.logger.Info("no speech detected, discarding take")
			i.recorder.Reset()
			i.mu.Lock()
			i.lastBlob = nil
			i.phase = domain.PhaseIdle
			i.mu.Unlock()
			return nil
		}

		i.logger.Error("pipeline request failed", "error", err)
		i.mu.Lock()
		i.lastErr = err
		i.phase = domain.PhaseError
		i.mu.Unlock()
		return nil
	}

	if sessionID != "" {
		if err := i.sessions.AutoTitle(ctx, result.OriginalText); err != nil {
			i.logger.Warn("auto-title failed", "error", err)
		}
		i.sessions.Append(i.buildMessage(sessionID, result))
	}

	if _, err := i.player.AutoPlay(ctx, result.AudioBase64, result.AudioFormat, snapshot.AutoPlay); err != nil {
		i.logger.Warn("autoplay failed", "error", err)
	}

	i.mu.Lock()
	i.result = &result
	i.phase = domain.PhaseResult
	i.mu.Unlock()
	return nil
}

func (i *Interactor) buildMessage(sessionID string, result domain.PipelineResult) domain.Message {
	return domain.Message{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		OriginalText:   result.OriginalText,
		TranslatedText: result.TranslatedText,
		OriginalLang:   result.DetectedLanguage,
		TranslatedLang: result.TargetLanguage,
		AudioRef:       result.AudioBase64,
		Timings: domain.Timings{
			TotalMs:     result.TotalDurationMs,
			STTMs:       result.STTMs,
			TranslateMs: result.TranslateMs,
			TTSMs:       result.TTSMs,
		},
		CreatedAt: time.Now(),
	}
}

// Retry re-runs the pipeline with the retained blob and a fresh settings
// snapshot. Valid from result (e.g. to hear a different voice) and from
// error. No audio is re-captured.
func (i *Interactor) Retry(ctx context.Context) error {
	i.mu.Lock()
	if i.phase != domain.PhaseResult && i.phase != domain.PhaseError {
		i.mu.Unlock()
		return domain.ErrBusy
	}
	blob := i.lastBlob
	i.mu.Unlock()

	if blob == nil {
		return domain.ErrNotRecording
	}
	return i.process(ctx, blob)
}

// Reset discards the result or error and immediately starts a fresh take:
// reset is "discard and re-record", not "discard and wait". Safe from any
// phase except processing; repeated calls converge to idle.
func (i *Interactor) Reset(ctx context.Context) error {
	i.mu.Lock()
	if i.phase == domain.PhaseProcessing {
		i.mu.Unlock()
		return domain.ErrBusy
	}
	i.phase = domain.PhaseIdle
	i.result = nil
	i.lastErr = nil
	i.lastBlob = nil
	i.mu.Unlock()

	i.recorder.Reset()
	if err := i.recorder.Start(ctx); err != nil {
		i.logger.Warn("auto-start after reset failed", "error", err)
	}
	return nil
}

// Toggle is the single-key trigger: start or stop recording, exactly like
// the manual controls. It is ignored while a text entry has focus and inert
// outside idle.
func (i *Interactor) Toggle(ctx context.Context) error {
	if i.typingGuard() {
		return nil
	}

	i.mu.Lock()
	if i.phase != domain.PhaseIdle {
		i.mu.Unlock()
		return nil
	}
	i.mu.Unlock()

	if i.recorder.Recording() {
		return i.StopCapture(ctx)
	}
	return i.StartCapture(ctx)
}

// Close releases the capture and playback resources.
func (i *Interactor) Close() error {
	i.recorder.Reset()
	return i.player.Close()
}

func (i *Interactor) Phase() domain.Phase {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.phase
}

// Result returns the last pipeline result, or false outside the result phase.
func (i *Interactor) Result() (domain.PipelineResult, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.result == nil {
		return domain.PipelineResult{}, false
	}
	return *i.result, true
}

// Err returns the failure of the last turn, nil outside the error phase.
func (i *Interactor) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}
