package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/whisper-pipe/internal/app"
	"github.com/petems/whisper-pipe/internal/asr"
	"github.com/petems/whisper-pipe/internal/audio"
	"github.com/petems/whisper-pipe/internal/config"
	"github.com/petems/whisper-pipe/internal/events"
	"github.com/petems/whisper-pipe/internal/logging"
	"github.com/petems/whisper-pipe/internal/metrics"
	"github.com/petems/whisper-pipe/internal/permissions"
	"github.com/petems/whisper-pipe/internal/pipeline"
	"github.com/petems/whisper-pipe/internal/vad"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

const shutdownTimeout = 2 * time.Minute

func main() {
	// Load config from XDG/Library/AppData, .env and the environment
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)
	log.Info().Str("version", Version).Str("commit", Commit).Msg("whisper-pipe starting...")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(); err != nil {
		log.Fatal().Err(err).Msg("Required permissions not granted")
	}

	// Initialize audio
	pa, err := audio.NewPortAudio(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer pa.Close()

	if devices, err := pa.EnumerateDevices(); err == nil {
		for _, d := range devices {
			log.Debug().Str("device", d.String()).Msg("Audio device")
		}
	}

	// Initialize VAD
	var detector vad.Engine
	if cfg.VAD.Engine != "" {
		kind, _ := vad.ParseKind(cfg.VAD.Engine)
		detector, err = vad.New(kind, vad.Config{
			EnergyThreshold: cfg.VAD.EnergyThreshold,
			SpeechThreshold: cfg.VAD.SpeechThreshold,
			ModelPath:       cfg.VAD.ModelPath,
			RuntimeLibrary:  cfg.VAD.RuntimeLibrary,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize VAD")
		}
		defer detector.Close()
	}

	// Load the ASR model and start the transcription workers
	engine, _ := asr.ParseEngine(cfg.Whisper.Engine)
	overflow, _ := pipeline.ParseOverflowPolicy(cfg.Pipeline.Overflow)
	queue, results, control, err := pipeline.CreateTranscriptionChannel(pipeline.Config{
		Engine:         engine,
		Workers:        cfg.Pipeline.Workers,
		QueueSize:      cfg.Pipeline.QueueSize,
		Overflow:       overflow,
		MinSpeechRatio: cfg.Pipeline.MinSpeechRatio,
		Timeout:        cfg.Pipeline.Timeout.Std(),
	}, asr.LoadConfig{
		ModelsDir: cfg.Whisper.ModelsDir,
		Language:  cfg.Whisper.Language,
		Threads:   cfg.Whisper.Threads,
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize transcription")
	}

	publisher := events.New(&events.Config{
		Enabled: cfg.Kafka.Enabled,
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	}, log)
	defer publisher.Close()

	application := app.New(app.Config{
		Catalog:   pa,
		Source:    pa,
		VAD:       detector,
		Queue:     queue,
		Results:   results,
		Pipeline:  control,
		Publisher: publisher,
		Config:    cfg,
		Logger:    log,
	})

	// Setup shutdown signal handling; the current segment is finished and enqueued
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Capture error")
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			log.Error().Err(err).Msg("Failed to push metrics")
		}
	}
}
