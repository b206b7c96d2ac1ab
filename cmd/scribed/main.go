package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scribe/internal/broadcast"
	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/services/ffmpeg"
	"scribe/internal/services/whisper"
	"scribe/internal/services/ytdlp"
	"scribe/internal/storage"
	"scribe/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		os.Exit(1)
	}

	if reset, err := st.ResetStuckProcessing(ctx, "daemon restarted while job was processing"); err != nil {
		logger.Warn("reset stuck jobs", logging.Error(err))
	} else if reset > 0 {
		logger.Info("reset stuck jobs", logging.Int64("count", reset))
	}

	backend, err := storage.NewFromConfig(cfg)
	if err != nil {
		logger.Error("init storage backend", logging.Error(err))
		os.Exit(1)
	}

	hub := broadcast.NewHub()
	notifier := notifications.NewService(cfg)

	coordinator := pipeline.New(cfg, st, hub, notifier, pipeline.Deps{
		Downloader: ytdlp.NewClient(ytdlp.Config{
			YtdlpBin:    cfg.Download.YtdlpBin,
			FFmpegBin:   cfg.Download.FFmpegBin,
			CookiesFile: cfg.Download.CookiesFile,
			ProxyURL:    cfg.Download.ProxyURL,
			Timeout:     time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		}),
		Extractor: ffmpeg.NewExtractor(cfg.Download.FFmpegBin),
		Transcriber: whisper.NewService(whisper.Config{
			Bin:         cfg.Transcription.WhisperBin,
			Model:       cfg.Transcription.Model,
			Device:      cfg.Transcription.Device,
			ComputeType: cfg.Transcription.ComputeType,
		}),
		Results: backend,
	}, logger)

	d, err := daemon.New(cfg, st, hub, coordinator, backend, notifier, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("scribed shutting down")
}
