package inkonnect_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
	"github.com/LL4nc33/oidanice-inkonnect/internal/infra/inkonnect"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultSettings() domain.PipelineSettings {
	return domain.PipelineSettings{
		TargetLang: "en",
		TTSEnabled: true,
		AutoPlay:   true,
		Translator: domain.LocalTranslator{Model: "gemma3:4b"},
		Voice:      domain.PiperSynthesizer{Voice: "en_US-amy-medium"},
	}
}

func TestClientRunSendsMultipartAndQuery(t *testing.T) {
	t.Parallel()

	blob := []byte("RIFF fake wav bytes")
	var gotQuery url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pipeline" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.Query()

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "recording.wav" {
			t.Errorf("file name: got %s, want recording.wav", header.Filename)
		}
		uploaded, _ := io.ReadAll(file)
		if string(uploaded) != string(blob) {
			t.Error("uploaded bytes do not match the take")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"original_text":     "hola",
			"detected_language": "es",
			"translated_text":   "hello",
			"audio":             "bXAz",
			"audio_format":      "mp3",
			"duration_ms":       1234,
			"stt_ms":            300,
		})
	}))
	defer server.Close()

	settings := defaultSettings()
	settings.SourceLang = "es"

	client := inkonnect.NewClient(server.URL, testLogger())
	result, err := client.Run(context.Background(), blob, settings, "sess-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for key, want := range map[string]string{
		"source_lang": "es",
		"target_lang": "en",
		"tts":         "true",
		"model":       "gemma3:4b",
		"voice":       "en_US-amy-medium",
		"session_id":  "sess-1",
	} {
		if got := gotQuery.Get(key); got != want {
			t.Errorf("query %s: got %q, want %q", key, got, want)
		}
	}

	if result.TranslatedText != "hello" || result.DetectedLanguage != "es" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.TargetLanguage != "en" {
		t.Errorf("target language: got %s, want the settings value", result.TargetLanguage)
	}
	if result.AudioFormat != domain.AudioFormatMP3 || result.AudioBase64 != "bXAz" {
		t.Errorf("audio: got %s/%q", result.AudioFormat, result.AudioBase64)
	}
	if result.TotalDurationMs != 1234 {
		t.Errorf("duration: got %d", result.TotalDurationMs)
	}
	if result.STTMs == nil || *result.STTMs != 300 {
		t.Errorf("stt ms: got %v", result.STTMs)
	}
	if result.TTSMs != nil {
		t.Errorf("tts ms should be absent, got %v", result.TTSMs)
	}
}

func TestClientRunProviderQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		settings domain.PipelineSettings
		want     map[string]string
		absent   []string
	}{
		{
			name: "openai translator",
			settings: domain.PipelineSettings{
				TargetLang: "de",
				Translator: domain.OpenAITranslator{URL: "https://api.openai.com/v1", Key: "sk-x", Model: "gpt-4o-mini"},
			},
			want: map[string]string{
				"provider": "openai",
				"api_url":  "https://api.openai.com/v1",
				"api_key":  "sk-x",
				"model":    "gpt-4o-mini",
				"tts":      "false",
			},
			absent: []string{"source_lang", "voice", "session_id"},
		},
		{
			name: "deepl translator",
			settings: domain.PipelineSettings{
				TargetLang: "fr",
				Translator: domain.DeepLTranslator{Key: "dl-key", Free: true},
			},
			want: map[string]string{
				"provider":   "deepl",
				"api_key":    "dl-key",
				"deepl_free": "true",
			},
			absent: []string{"api_url", "ollama_url"},
		},
		{
			name: "chatterbox voice",
			settings: domain.PipelineSettings{
				TargetLang: "en",
				TTSEnabled: true,
				Translator: domain.LocalTranslator{},
				Voice: domain.ChatterboxSynthesizer{
					URL: "http://localhost:8004", Voice: "ref.wav",
					Exaggeration: 0.5, CfgWeight: 0.5, Temperature: 0.8,
				},
			},
			want: map[string]string{
				"tts_provider":   "chatterbox",
				"chatterbox_url": "http://localhost:8004",
				"voice":          "ref.wav",
				"exaggeration":   "0.5",
				"cfg_weight":     "0.5",
				"temperature":    "0.8",
			},
		},
		{
			name: "elevenlabs voice",
			settings: domain.PipelineSettings{
				TargetLang: "en",
				TTSEnabled: true,
				Translator: domain.LocalTranslator{},
				Voice: domain.ElevenLabsSynthesizer{
					Key: "el-key", VoiceID: "v1", Model: "eleven_multilingual_v2",
					Stability: 0.5, Similarity: 0.75,
				},
			},
			want: map[string]string{
				"tts_provider":          "elevenlabs",
				"elevenlabs_key":        "el-key",
				"elevenlabs_voice_id":   "v1",
				"elevenlabs_model":      "eleven_multilingual_v2",
				"elevenlabs_stability":  "0.5",
				"elevenlabs_similarity": "0.75",
			},
		},
		{
			name: "tts disabled drops voice params",
			settings: domain.PipelineSettings{
				TargetLang: "en",
				TTSEnabled: false,
				Translator: domain.LocalTranslator{},
				Voice:      domain.ChatterboxSynthesizer{URL: "http://localhost:8004"},
			},
			want:   map[string]string{"tts": "false"},
			absent: []string{"tts_provider", "chatterbox_url", "voice"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotQuery url.Values
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query()
				json.NewEncoder(w).Encode(map[string]any{"original_text": "x"})
			}))
			defer server.Close()

			client := inkonnect.NewClient(server.URL, testLogger())
			if _, err := client.Run(context.Background(), []byte("a"), tc.settings, ""); err != nil {
				t.Fatalf("run failed: %v", err)
			}

			for key, want := range tc.want {
				if got := gotQuery.Get(key); got != want {
					t.Errorf("query %s: got %q, want %q", key, got, want)
				}
			}
			for _, key := range tc.absent {
				if gotQuery.Has(key) {
					t.Errorf("query %s present: %q", key, gotQuery.Get(key))
				}
			}
		})
	}
}

func TestClientRunNoSpeechMapsToSentinel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "No speech detected"})
	}))
	defer server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())
	_, err := client.Run(context.Background(), []byte("a"), defaultSettings(), "")
	if !errors.Is(err, domain.ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
}

func TestClientRunSurfacesServerDetail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "whisper model not loaded"})
	}))
	defer server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())
	_, err := client.Run(context.Background(), []byte("a"), defaultSettings(), "")

	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d", transportErr.Status)
	}
	if transportErr.Message != "whisper model not loaded" {
		t.Errorf("message: got %q", transportErr.Message)
	}
}

func TestClientRunIsNeverRetried(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())
	if _, err := client.Run(context.Background(), []byte("a"), defaultSettings(), ""); err == nil {
		t.Fatal("expected error")
	}

	// The take upload is not idempotent from the user's point of view;
	// resubmission is an explicit action.
	if got := requests.Load(); got != 1 {
		t.Fatalf("pipeline requests: got %d, want 1", got)
	}
}

func TestClientCreateSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body["source_lang"] != "es" || body["target_lang"] != "en" || body["audio_enabled"] != true {
			t.Errorf("unexpected body: %v", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":            "s-1",
			"title":         nil,
			"source_lang":   "es",
			"target_lang":   "en",
			"audio_enabled": true,
			"message_count": 0,
			"created_at":    "2026-08-30T10:15:00.123456",
			"updated_at":    "2026-08-30T10:15:00.123456",
		})
	}))
	defer server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())
	session, err := client.CreateSession(context.Background(), "es", "en", true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if session.ID != "s-1" || session.Title != "" {
		t.Errorf("unexpected session: %+v", session)
	}
	if !session.TTSEnabled {
		t.Error("audio_enabled not mapped")
	}
	if session.CreatedAt.IsZero() {
		t.Error("isoformat timestamp not parsed")
	}
}

func TestClientGetMessages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/s-1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{
					"id":              "m-1",
					"session_id":      "s-1",
					"original_text":   "hola",
					"translated_text": "hello",
					"original_lang":   "es",
					"translated_lang": "en",
					"audio_path":      nil,
					"stt_ms":          250,
					"created_at":      "2026-08-30T10:16:00Z",
				},
			},
			"total": 42,
		})
	}))
	defer server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())
	messages, total, err := client.GetMessages(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}

	if total != 42 {
		t.Errorf("total: got %d, want 42 (independent of page size)", total)
	}
	if len(messages) != 1 {
		t.Fatalf("messages: got %d, want 1", len(messages))
	}
	m := messages[0]
	if m.TranslatedText != "hello" || m.TranslatedLang != "en" {
		t.Errorf("unexpected message: %+v", m)
	}
	if m.AudioRef != "" {
		t.Errorf("null audio_path mapped to %q", m.AudioRef)
	}
	if m.Timings.STTMs == nil || *m.Timings.STTMs != 250 {
		t.Errorf("stt ms: got %v", m.Timings.STTMs)
	}
}

func TestClientListSessionsRetriesReads(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("limit: got %q, want 20", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sessions": []map[string]any{{"id": "s-1"}, {"id": "s-2"}},
			"total":    2,
		})
	}))
	defer server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())
	sessions, err := client.ListSessions(context.Background(), 20)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(sessions) != 2 || sessions[0].ID != "s-1" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests: got %d, want 2 (one retry)", got)
	}
}

func TestClientUpdateAndDeleteSession(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.Method == http.MethodPatch {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			gotTitle = body["title"]
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())

	if err := client.UpdateSessionTitle(context.Background(), "s-1", "my chat"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/sessions/s-1" || gotTitle != "my chat" {
		t.Errorf("update request: %s %s title=%q", gotMethod, gotPath, gotTitle)
	}

	if err := client.DeleteSession(context.Background(), "s-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/sessions/s-1" {
		t.Errorf("delete request: %s %s", gotMethod, gotPath)
	}
}

func TestClientConnectionFailureIsTransportError(t *testing.T) {
	t.Parallel()

	// Point at a closed port.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := inkonnect.NewClient(server.URL, testLogger())
	_, err := client.Run(context.Background(), []byte("a"), defaultSettings(), "")

	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Status != 0 {
		t.Errorf("status: got %d, want 0 for connection failures", transportErr.Status)
	}
}
