package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/lookout/internal/api"
	"github.com/MikeSquared-Agency/lookout/internal/artifacts"
	"github.com/MikeSquared-Agency/lookout/internal/config"
	"github.com/MikeSquared-Agency/lookout/internal/deepgram"
	"github.com/MikeSquared-Agency/lookout/internal/hermes"
	"github.com/MikeSquared-Agency/lookout/internal/pipeline"
	"github.com/MikeSquared-Agency/lookout/internal/reasoning"
	"github.com/MikeSquared-Agency/lookout/internal/rebuild"
	"github.com/MikeSquared-Agency/lookout/internal/retention"
	"github.com/MikeSquared-Agency/lookout/internal/speech"
	"github.com/MikeSquared-Agency/lookout/internal/store"
	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

func main() {
	// A missing .env is fine; the environment may be set another way.
	_ = godotenv.Load()

	cfg := config.Load()
	logger, closeLog := config.SetupLogger(config.ParseLogLevel(cfg.LogLevel), cfg.LogFile)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("lookout starting", "port", cfg.Port, "base_url", cfg.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Artifact areas
	areas := artifacts.NewAreas(cfg.DataDir, cfg.OutputsDir)
	if err := areas.Ensure(); err != nil {
		slog.Error("failed to create artifact areas", "error", err)
		os.Exit(1)
	}

	// Timeline
	tl := timeline.New()
	if cfg.RebuildOnStart {
		r := rebuild.NewRunner(rebuild.Config{
			FramesDir: areas.Frames,
			SessionID: "default",
			Since:     time.Now().Add(-cfg.Retention),
		}, tl, slog.Default())
		if _, err := r.Run(ctx); err != nil {
			slog.Warn("timeline rebuild failed", "error", err)
		}
	}

	// Reasoning model (optional: answers degrade to a summary without it)
	rt := reasoning.NewRuntime(reasoning.AnthropicLoader(cfg.AnthropicAPIKey, cfg.AnthropicModel), cfg.ReasonMaxTokens, slog.Default())
	if err := rt.Preload(ctx); err != nil {
		slog.Warn("reasoning model not loaded, answers will be summaries", "error", err)
	}

	// Speech
	if cfg.DeepgramAPIKey == "" {
		slog.Warn("DEEPGRAM_API_KEY not set, transcription and synthesis will fail")
	}
	dg := deepgram.NewClient(cfg.DeepgramAPIKey, cfg.DeepgramSTTModel, cfg.DeepgramTTSModel, cfg.ASRLanguage)

	orch := pipeline.New(pipeline.Config{
		SampleCap:   cfg.MaxSampled,
		BaseURL:     cfg.BaseURL,
		ASROverride: cfg.ASROverrideAudio,
	}, tl, areas, speech.NewTranscriber(dg), rt, speech.NewSynthesizer(dg), slog.Default())

	sweeperOpts := []retention.Option{
		retention.WithRetention(cfg.Retention),
		retention.WithInterval(cfg.SweepInterval),
		retention.WithLogger(slog.Default()),
	}

	// Database (optional run log)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		orch.SetRecorder(db)
		sweeperOpts = append(sweeperOpts, retention.WithRunExpirer(db))
		slog.Info("database connected")
	} else {
		slog.Info("DATABASE_URL not set, run log disabled")
	}

	// NATS/Hermes (optional events)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		var err error
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		orch.SetPublisher(hermesClient)
		sweeperOpts = append(sweeperOpts, retention.WithPublisher(hermesClient))
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Retention sweeper
	sweeper := retention.New(tl, areas.All(), sweeperOpts...)
	sweepDone := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(sweepDone)
	}()

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectSweepRequest, func(_ string, _ []byte) {
			sweeper.Trigger()
		}); err != nil {
			slog.Warn("failed to subscribe to sweep requests", "error", err)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, orch, tl, areas.Outputs, slog.Default())
	srv.SetSweeper(sweeper)
	if db != nil {
		srv.SetRunLister(db)
	}
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("lookout ready", "port", cfg.Port, "retention", cfg.Retention.String())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	<-sweepDone
	if hermesClient != nil {
		hermesClient.Drain(shutdownCtx)
	}
	slog.Info("lookout stopped")
}
