package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/config"
	"github.com/techfala/ia-wizard/backend/internal/handler"
	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/voice"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("failed to load configuration: %v", err)
	}

	log, err := logger.Init(cfg.Log.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	if envErr != nil {
		log.Warnw("failed to load .env file, continuing with system environment variables only", "error", envErr)
	}

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	personaStore := persona.NewMemoryStore(persona.Seed())

	flows := flow.NewManager(flow.Deps{
		Personas: personaStore,
		Webhook: webhook.Config{
			BaseURL: cfg.Webhook.BaseURL,
			Token:   cfg.Webhook.Token,
			Timeout: cfg.Webhook.Timeout,
		},
		TrialSeconds:   int(cfg.Trial.Duration / time.Second),
		TickInterval:   cfg.Trial.TickInterval,
		ProcessingTick: time.Second,
		Logger:         logger.Base(),
		Metrics:        metrics,
	}, cfg.Flow.IdleTimeout)
	flows.StartJanitor(ctx, cfg.Flow.JanitorInterval)
	defer flows.Close()

	router := handler.NewRouter(handler.Deps{
		Personas: personaStore,
		Flows:    flows,
		Voice: voice.Config{
			Bars:     cfg.Voice.VisualizerBars,
			FFTSize:  cfg.Voice.FFTSize,
			MaxBytes: cfg.Voice.MaxClipBytes,
		},
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger.Base(),
	})

	log.Infow("webhook backend configured", "base_url", cfg.Webhook.BaseURL, "token", cfg.Webhook.Token != "")
	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Base().Info("IA Wizard backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout); err != nil {
		logger.Base().Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
