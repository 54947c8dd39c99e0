package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
)

const titleLimit = 50

// SessionManager creates, loads and clears conversation sessions and is the
// sole mutator of the in-memory message log.
type SessionManager struct {
	api    SessionAPI
	logger *slog.Logger

	flight singleflight.Group

	mu          sync.Mutex
	active      *domain.Session
	autoCreated bool
	titled      bool
	messages    []domain.Message
	total       int
	list        []domain.Session
}

func NewSessionManager(api SessionAPI, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		api:    api,
		logger: logger,
	}
}

// Create starts a backend session and makes it active. Concurrent callers
// share one in-flight creation; the marker clears once it settles, so a
// failed attempt can be retried freshly. auto marks sessions created
// implicitly for a first utterance, which enables one-shot auto-titling.
func (m *SessionManager) Create(ctx context.Context, sourceLang, targetLang string, ttsEnabled, auto bool) (domain.Session, error) {
	v, err, _ := m.flight.Do("create", func() (interface{}, error) {
		session, err := m.api.CreateSession(ctx, sourceLang, targetLang, ttsEnabled)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.active = &session
		m.autoCreated = auto
		m.titled = session.Title != ""
		m.mu.Unlock()

		m.logger.Info("session created", "id", session.ID, "auto", auto)
		return session, nil
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("creating session: %w", err)
	}
	return v.(domain.Session), nil
}

// Load fetches a session and fully replaces the message log with that
// session's history.
func (m *SessionManager) Load(ctx context.Context, id string) (domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Session{}, fmt.Errorf("invalid session id %q: %w", id, err)
	}

	session, err := m.api.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("loading session: %w", err)
	}

	messages, total, err := m.api.GetMessages(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("loading session messages: %w", err)
	}

	m.mu.Lock()
	m.active = &session
	m.autoCreated = false
	m.titled = session.Title != ""
	m.messages = messages
	m.total = total
	m.mu.Unlock()

	return session, nil
}

// Clear drops the active session and any pending create. It leaves the
// message log alone; call ClearMessages separately to wipe the transcript.
func (m *SessionManager) Clear() {
	m.flight.Forget("create")
	m.mu.Lock()
	m.active = nil
	m.autoCreated = false
	m.titled = false
	m.mu.Unlock()
}

// ClearMessages empties the message log and its running total.
func (m *SessionManager) ClearMessages() {
	m.mu.Lock()
	m.messages = nil
	m.total = 0
	m.mu.Unlock()
}

// Append adds one completed turn to the log and bumps the running total,
// which tracks the backend count independently of the slice length.
func (m *SessionManager) Append(msg domain.Message) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.total++
	if m.active != nil && m.active.ID == msg.SessionID {
		m.active.MessageCount++
	}
	m.mu.Unlock()
}

// AutoTitle titles the active session from the first transcribed utterance,
// truncated to 50 characters. It fires only for a session this manager
// auto-created, and exactly once; explicitly created or already-titled
// sessions are never retitled.
func (m *SessionManager) AutoTitle(ctx context.Context, text string) error {
	m.mu.Lock()
	if m.active == nil || !m.autoCreated || m.titled || text == "" {
		m.mu.Unlock()
		return nil
	}
	id := m.active.ID
	m.titled = true
	m.mu.Unlock()

	title := truncateTitle(text)
	if err := m.api.UpdateSessionTitle(ctx, id, title); err != nil {
		return fmt.Errorf("titling session: %w", err)
	}

	m.mu.Lock()
	if m.active != nil && m.active.ID == id {
		m.active.Title = title
	}
	m.mu.Unlock()
	return nil
}

// Rename sets a user-chosen title and suppresses any later auto-title.
func (m *SessionManager) Rename(ctx context.Context, id, title string) error {
	if err := m.api.UpdateSessionTitle(ctx, id, title); err != nil {
		return fmt.Errorf("renaming session: %w", err)
	}

	m.mu.Lock()
	if m.active != nil && m.active.ID == id {
		m.active.Title = title
		m.titled = true
	}
	for i := range m.list {
		if m.list[i].ID == id {
			m.list[i].Title = title
		}
	}
	m.mu.Unlock()
	return nil
}

// Refresh reloads the cached session list.
func (m *SessionManager) Refresh(ctx context.Context, limit int) ([]domain.Session, error) {
	sessions, err := m.api.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	m.mu.Lock()
	m.list = sessions
	m.mu.Unlock()
	return sessions, nil
}

// Delete removes a session optimistically: it disappears from the cached
// list immediately, and a backend failure is reconciled by re-fetching the
// list rather than leaving it inconsistent.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	kept := m.list[:0]
	for _, s := range m.list {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	m.list = kept
	wasActive := m.active != nil && m.active.ID == id
	limit := len(m.list) + 1
	m.mu.Unlock()

	if wasActive {
		m.Clear()
		m.ClearMessages()
	}

	if err := m.api.DeleteSession(ctx, id); err != nil {
		if _, rerr := m.Refresh(ctx, limit); rerr != nil {
			m.logger.Warn("reconciling session list", "error", rerr)
		}
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Active returns the current session, or false when none is active.
func (m *SessionManager) Active() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return domain.Session{}, false
	}
	return *m.active, true
}

// Messages returns the ordered log and the running backend total.
func (m *SessionManager) Messages() ([]domain.Message, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Message, len(m.messages))
	copy(out, m.messages)
	return out, m.total
}

// Sessions returns the cached session list.
func (m *SessionManager) Sessions() []domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Session, len(m.list))
	copy(out, m.list)
	return out
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit])
}
