package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketwatch_bot/internal/bot"
	"marketwatch_bot/internal/classify"
	"marketwatch_bot/internal/config"
	"marketwatch_bot/internal/geo"
	"marketwatch_bot/internal/notify"
	"marketwatch_bot/internal/schedule"
	"marketwatch_bot/internal/source"
	"marketwatch_bot/internal/status"
	"marketwatch_bot/internal/storage"
	"marketwatch_bot/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	for _, p := range []string{cfg.DatabasePath, cfg.PairsLogPath, cfg.StatusPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}
	if cfg.DebugDumpDir != "" {
		if err := os.MkdirAll(cfg.DebugDumpDir, 0o750); err != nil {
			log.Error("create dump directory", "path", cfg.DebugDumpDir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create telegram client", "error", err)
		os.Exit(1)
	}

	var src source.Source
	switch cfg.ListingSource {
	case config.SourceFeed:
		src = source.NewFeed(cfg.FeedURL, nil, log)
	default:
		src = source.NewBrowser(cfg.SearchURL, cfg.BaseURL, cfg.Headless, log)
	}

	geocoder := geo.NewClient(cfg.GeocoderURL, nil)
	messenger := notify.NewTelegram(api, log)
	pipeline := notify.NewPipeline(messenger, src, geocoder, classify.New(store, log),
		cfg.BaseURL, cfg.DebugDumpDir, log)
	tracker := status.NewTracker(messenger, cfg.StatusPath, log)
	w := watcher.New(store, src, pipeline, tracker, schedule.New(), cfg.PairsLogPath, log)

	b := bot.New(api, store, cfg, geocoder, src, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting marketwatch bot", "source", cfg.ListingSource)

	go w.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
