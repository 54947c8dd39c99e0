package domain

import "time"

// Phase models one conversation turn: idle until a take is submitted,
// processing while the pipeline round trip is in flight, then result or
// error until the user retries or resets.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseProcessing Phase = "processing"
	PhaseResult     Phase = "result"
	PhaseError      Phase = "error"
)

// AudioFormat is the container of a synthesized audio payload.
type AudioFormat string

const (
	AudioFormatWAV AudioFormat = "wav"
	AudioFormatMP3 AudioFormat = "mp3"
)

// PipelineResult is the normalized outcome of one pipeline round trip.
// Immutable once produced.
type PipelineResult struct {
	OriginalText     string
	DetectedLanguage string
	TranslatedText   string
	TargetLanguage   string
	AudioBase64      string
	AudioFormat      AudioFormat
	TotalDurationMs  int64
	STTMs            *int64
	TranslateMs      *int64
	TTSMs            *int64
}

// Session is a multi-turn conversation tracked by the backend.
type Session struct {
	ID           string
	Title        string
	SourceLang   string
	TargetLang   string
	TTSEnabled   bool
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one completed exchange within a session. The in-memory log is
// append-only; insertion order is display order.
type Message struct {
	ID             string
	SessionID      string
	OriginalText   string
	TranslatedText string
	OriginalLang   string
	TranslatedLang string
	AudioRef       string
	Timings        Timings
	CreatedAt      time.Time
}

// Timings carries per-stage latencies of a turn. Stage values are nil when
// the backend skipped the stage.
type Timings struct {
	TotalMs     int64
	STTMs       *int64
	TranslateMs *int64
	TTSMs       *int64
}
