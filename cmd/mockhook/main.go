// Command mockhook serves the automation webhook routes locally.
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
	"github.com/techfala/ia-wizard/backend/internal/mockhook"
	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/service/ai"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("failed to load configuration: %v", err)
	}
	if _, err := logger.Init(cfg.Log.Env); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Base()
	if envErr != nil {
		log.Warn("failed to load .env file", zap.Error(envErr))
	}

	store, closeStore, err := mockhook.OpenStore(ctx, cfg.Mock.RedisURL, cfg.Mock.HistoryLimit, cfg.Mock.HistoryTTL)
	if err != nil {
		log.Fatal("failed to open history store", zap.Error(err))
	}
	defer func() { _ = closeStore() }()
	if cfg.Mock.RedisURL != "" {
		log.Info("conversation memory backed by redis")
	} else {
		log.Info("REDIS_URL not set, conversation memory kept in process")
	}

	personas := persona.NewMemoryStore(persona.Seed())
	opts := []mockhook.Option{mockhook.WithToken(cfg.Mock.Token), mockhook.WithLogger(log)}

	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, personas, cfg.AI)
		if err != nil {
			log.Warn("failed to initialize AI service, using canned replies", zap.Error(err))
		} else {
			opts = append(opts, mockhook.WithReplier(aiService))
			log.Info("AI service initialized successfully", zap.String("model", cfg.AI.Model))
		}
	} else {
		log.Info("Ark credentials not configured, using canned replies")
	}

	srv := &http.Server{
		Addr:              cfg.Mock.Addr,
		Handler:           mockhook.NewServer(store, personas, opts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("mock automation backend listening", zap.String("addr", cfg.Mock.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}
}
