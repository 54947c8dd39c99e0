package application

import (
	"context"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
)

// PipelineClient performs the single speech-to-text → translate → synthesis
// round trip for one recorded take. Implementations must not touch session
// or playback state.
type PipelineClient interface {
	Run(ctx context.Context, blob []byte, settings domain.PipelineSettings, sessionID string) (domain.PipelineResult, error)
}

// SessionAPI is the backend's session surface.
type SessionAPI interface {
	CreateSession(ctx context.Context, sourceLang, targetLang string, ttsEnabled bool) (domain.Session, error)
	GetSession(ctx context.Context, id string) (domain.Session, error)
	ListSessions(ctx context.Context, limit int) ([]domain.Session, error)
	UpdateSessionTitle(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error
	GetMessages(ctx context.Context, id string) ([]domain.Message, int, error)
}

// SettingsSource resolves the current provider configuration into a
// per-request snapshot.
type SettingsSource interface {
	Snapshot() domain.PipelineSettings
}
