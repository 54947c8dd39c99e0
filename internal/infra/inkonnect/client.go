// Package inkonnect is the HTTP client for the inkonnect backend: the
// pipeline endpoint and the session/message endpoints.
package inkonnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
	"github.com/LL4nc33/oidanice-inkonnect/internal/infra"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	retry      infra.RetryConfig
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
		retry:      infra.DefaultRetryConfig(),
	}
}

// Run performs the single pipeline round trip for one recorded take. It is
// never retried automatically; retry is a user action.
func (c *Client) Run(ctx context.Context, blob []byte, settings domain.PipelineSettings, sessionID string) (domain.PipelineResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "recording.wav")
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err = part.Write(blob); err != nil {
		return domain.PipelineResult{}, fmt.Errorf("writing audio: %w", err)
	}
	if err = writer.Close(); err != nil {
		return domain.PipelineResult{}, fmt.Errorf("closing form: %w", err)
	}

	endpoint := c.baseURL + "/pipeline?" + pipelineQuery(settings, sessionID).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PipelineResult{}, &domain.TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.PipelineResult{}, decodeError(resp)
	}

	var pr pipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.PipelineResult{}, fmt.Errorf("decoding pipeline response: %w", err)
	}

	format := domain.AudioFormat(pr.AudioFormat)
	if format == "" {
		format = domain.AudioFormatWAV
	}

	audio := ""
	if pr.Audio != nil {
		audio = *pr.Audio
	}

	return domain.PipelineResult{
		OriginalText:     pr.OriginalText,
		DetectedLanguage: pr.DetectedLanguage,
		TranslatedText:   pr.TranslatedText,
		TargetLanguage:   settings.TargetLang,
		AudioBase64:      audio,
		AudioFormat:      format,
		TotalDurationMs:  pr.DurationMs,
		STTMs:            pr.SttMs,
		TranslateMs:      pr.TranslateMs,
		TTSMs:            pr.TtsMs,
	}, nil
}

// pipelineQuery flattens the settings snapshot into the backend's query
// surface. Only the selected provider cluster contributes parameters.
func pipelineQuery(settings domain.PipelineSettings, sessionID string) url.Values {
	params := url.Values{}
	if settings.SourceLang != "" {
		params.Set("source_lang", settings.SourceLang)
	}
	params.Set("target_lang", settings.TargetLang)
	params.Set("tts", strconv.FormatBool(settings.TTSEnabled))

	switch t := settings.Translator.(type) {
	case domain.LocalTranslator:
		if t.Model != "" {
			params.Set("model", t.Model)
		}
		if t.URL != "" {
			params.Set("ollama_url", t.URL)
		}
		if t.KeepAlive != "" {
			params.Set("ollama_keep_alive", t.KeepAlive)
		}
		if t.ContextLength > 0 {
			params.Set("ollama_context_length", strconv.Itoa(t.ContextLength))
		}
	case domain.OpenAITranslator:
		params.Set("provider", "openai")
		params.Set("api_url", t.URL)
		if t.Key != "" {
			params.Set("api_key", t.Key)
		}
		if t.Model != "" {
			params.Set("model", t.Model)
		}
	case domain.DeepLTranslator:
		params.Set("provider", "deepl")
		params.Set("api_key", t.Key)
		params.Set("deepl_free", strconv.FormatBool(t.Free))
	}

	if settings.TTSEnabled {
		switch v := settings.Voice.(type) {
		case domain.PiperSynthesizer:
			if v.Voice != "" {
				params.Set("voice", v.Voice)
			}
		case domain.ChatterboxSynthesizer:
			params.Set("tts_provider", "chatterbox")
			if v.Voice != "" {
				params.Set("voice", v.Voice)
			}
			if v.URL != "" {
				params.Set("chatterbox_url", v.URL)
			}
			params.Set("exaggeration", formatFloat(v.Exaggeration))
			params.Set("cfg_weight", formatFloat(v.CfgWeight))
			params.Set("temperature", formatFloat(v.Temperature))
		case domain.ElevenLabsSynthesizer:
			params.Set("tts_provider", "elevenlabs")
			params.Set("elevenlabs_key", v.Key)
			if v.VoiceID != "" {
				params.Set("elevenlabs_voice_id", v.VoiceID)
			}
			if v.Model != "" {
				params.Set("elevenlabs_model", v.Model)
			}
			params.Set("elevenlabs_stability", formatFloat(v.Stability))
			params.Set("elevenlabs_similarity", formatFloat(v.Similarity))
		}
	}

	if sessionID != "" {
		params.Set("session_id", sessionID)
	}
	return params
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (c *Client) CreateSession(ctx context.Context, sourceLang, targetLang string, ttsEnabled bool) (domain.Session, error) {
	payload, err := json.Marshal(sessionCreateRequest{
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		AudioEnabled: ttsEnabled,
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("encoding session: %w", err)
	}

	var sp sessionPayload
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", payload, &sp); err != nil {
		return domain.Session{}, err
	}
	return sp.toDomain(), nil
}

func (c *Client) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var sp sessionPayload
	err := infra.WithRetry(ctx, c.retry, func() error {
		return c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &sp)
	})
	if err != nil {
		return domain.Session{}, err
	}
	return sp.toDomain(), nil
}

func (c *Client) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	var lp sessionListPayload
	path := fmt.Sprintf("/sessions?limit=%d", limit)
	err := infra.WithRetry(ctx, c.retry, func() error {
		return c.doJSON(ctx, http.MethodGet, path, nil, &lp)
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(lp.Sessions))
	for _, sp := range lp.Sessions {
		sessions = append(sessions, sp.toDomain())
	}
	return sessions, nil
}

func (c *Client) UpdateSessionTitle(ctx context.Context, id, title string) error {
	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return fmt.Errorf("encoding title: %w", err)
	}
	return c.doJSON(ctx, http.MethodPatch, "/sessions/"+url.PathEscape(id), payload, nil)
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetMessages(ctx context.Context, id string) ([]domain.Message, int, error) {
	var mp messageListPayload
	err := infra.WithRetry(ctx, c.retry, func() error {
		return c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/messages", nil, &mp)
	})
	if err != nil {
		return nil, 0, err
	}

	messages := make([]domain.Message, 0, len(mp.Messages))
	for _, m := range mp.Messages {
		messages = append(messages, m.toDomain())
	}
	return messages, mp.Total, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError surfaces the server-provided message when one exists. The
// backend wraps errors as {"detail": "..."}; anything else is used raw.
// The "No speech detected" rejection maps to its sentinel.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	message := strings.TrimSpace(string(raw))

	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		message = detail.Detail
	}

	if message == "No speech detected" {
		return domain.ErrNoSpeech
	}
	return &domain.TransportError{Status: resp.StatusCode, Message: message}
}

type pipelineResponse struct {
	OriginalText     string  `json:"original_text"`
	DetectedLanguage string  `json:"detected_language"`
	TranslatedText   string  `json:"translated_text"`
	Audio            *string `json:"audio"`
	AudioFormat      string  `json:"audio_format"`
	DurationMs       int64   `json:"duration_ms"`
	SttMs            *int64  `json:"stt_ms"`
	TranslateMs      *int64  `json:"translate_ms"`
	TtsMs            *int64  `json:"tts_ms"`
}

type sessionCreateRequest struct {
	SourceLang   string `json:"source_lang"`
	TargetLang   string `json:"target_lang"`
	AudioEnabled bool   `json:"audio_enabled"`
}

type sessionPayload struct {
	ID           string  `json:"id"`
	Title        *string `json:"title"`
	SourceLang   string  `json:"source_lang"`
	TargetLang   string  `json:"target_lang"`
	AudioEnabled bool    `json:"audio_enabled"`
	MessageCount int     `json:"message_count"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func (p sessionPayload) toDomain() domain.Session {
	title := ""
	if p.Title != nil {
		title = *p.Title
	}
	return domain.Session{
		ID:           p.ID,
		Title:        title,
		SourceLang:   p.SourceLang,
		TargetLang:   p.TargetLang,
		TTSEnabled:   p.AudioEnabled,
		MessageCount: p.MessageCount,
		CreatedAt:    parseTime(p.CreatedAt),
		UpdatedAt:    parseTime(p.UpdatedAt),
	}
}

type sessionListPayload struct {
	Sessions []sessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

type messagePayload struct {
	ID             string  `json:"id"`
	SessionID      string  `json:"session_id"`
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	OriginalLang   string  `json:"original_lang"`
	TranslatedLang string  `json:"translated_lang"`
	AudioPath      *string `json:"audio_path"`
	SttMs          *int64  `json:"stt_ms"`
	TranslateMs    *int64  `json:"translate_ms"`
	TtsMs          *int64  `json:"tts_ms"`
	CreatedAt      string  `json:"created_at"`
}

func (p messagePayload) toDomain() domain.Message {
	audioRef := ""
	if p.AudioPath != nil {
		audioRef = *p.AudioPath
	}
	return domain.Message{
		ID:             p.ID,
		SessionID:      p.SessionID,
		OriginalText:   p.OriginalText,
		TranslatedText: p.TranslatedText,
		OriginalLang:   p.OriginalLang,
		TranslatedLang: p.TranslatedLang,
		AudioRef:       audioRef,
		Timings: domain.Timings{
			STTMs:       p.SttMs,
			TranslateMs: p.TranslateMs,
			TTSMs:       p.TtsMs,
		},
		CreatedAt: parseTime(p.CreatedAt),
	}
}

type messageListPayload struct {
	Messages []messagePayload `json:"messages"`
	Total    int              `json:"total"`
}

// parseTime accepts the backend's isoformat timestamps, with or without an
// offset.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
