package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LL4nc33/oidanice-inkonnect/config"
	"github.com/LL4nc33/oidanice-inkonnect/internal/application"
	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
	"github.com/LL4nc33/oidanice-inkonnect/internal/infra/audio"
	"github.com/LL4nc33/oidanice-inkonnect/internal/infra/inkonnect"
	"github.com/LL4nc33/oidanice-inkonnect/internal/infra/keys"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	format := application.DefaultAudioFormat()
	format.SampleRate = cfg.Audio.SampleRate

	client := inkonnect.NewClient(cfg.Server.BaseURL, logger)
	recorder := application.NewRecorder(audio.NewCaptureDevice(logger), format, logger)
	player := application.NewPlayer(audio.NewOutputDevice(logger), audio.NewDecoder(), logger)
	sessions := application.NewSessionManager(client, logger)

	interactor := application.NewInteractor(
		recorder,
		player,
		client,
		sessions,
		cfg,
		cfg.History.Enabled,
		nil,
		logger,
	)
	defer interactor.Close()

	if cfg.History.Enabled {
		if list, err := sessions.Refresh(ctx, cfg.History.ListLimit); err != nil {
			logger.Warn("listing sessions", "error", err)
		} else {
			logger.Info("session history", "sessions", len(list))
		}
	}

	logger.Info("ready",
		"server", cfg.Server.BaseURL,
		"target_lang", cfg.Languages.Target,
	)
	fmt.Println("space: record/stop  r: retry  n: new recording  d: save audio  q: quit")

	reader := keys.NewReader()
	err = reader.Run(ctx, func(key rune) {
		switch key {
		case ' ':
			if err := interactor.Toggle(ctx); err != nil {
				logger.Error("toggling capture", "error", err)
			}
			report(interactor)
		case 'r':
			if err := interactor.Retry(ctx); err != nil {
				logger.Warn("retry", "error", err)
			}
			report(interactor)
		case 'n':
			if err := interactor.Reset(ctx); err != nil {
				logger.Warn("reset", "error", err)
			}
		case 'd':
			saveAudio(interactor, player, cfg, logger)
		case 'q', 3: // ctrl-c in raw mode
			cancel()
		}
	})
	if err != nil && err != context.Canceled {
		logger.Error("key loop", "error", err)
		os.Exit(1)
	}
}

func report(interactor *application.Interactor) {
	switch interactor.Phase() {
	case domain.PhaseResult:
		if result, ok := interactor.Result(); ok {
			fmt.Printf("\r[%s] %s\n", result.DetectedLanguage, result.OriginalText)
			fmt.Printf("[%s] %s (%dms)\n", result.TargetLanguage, result.TranslatedText, result.TotalDurationMs)
		}
	case domain.PhaseError:
		if err := interactor.Err(); err != nil {
			fmt.Printf("\rerror: %v  (r to retry, n to re-record)\n", err)
		}
	}
}

func saveAudio(interactor *application.Interactor, player *application.Player, cfg *config.Config, logger *slog.Logger) {
	result, ok := interactor.Result()
	if !ok || result.AudioBase64 == "" {
		return
	}
	path, err := player.Download(result.AudioBase64, result.AudioFormat, cfg.Audio.DownloadDir)
	if err != nil {
		logger.Error("saving audio", "error", err)
		return
	}
	fmt.Printf("\rsaved %s\n", path)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
