package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lyrebird-labs/lyrebird/internal/auth"
	"github.com/lyrebird-labs/lyrebird/internal/config"
	"github.com/lyrebird-labs/lyrebird/internal/httpapi"
	"github.com/lyrebird-labs/lyrebird/internal/observability"
	"github.com/lyrebird-labs/lyrebird/internal/pipeline"
	"github.com/lyrebird-labs/lyrebird/internal/provider/registry"
	"github.com/lyrebird-labs/lyrebird/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fatal("build logger", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}

	providers := registry.New(registry.Credentials{
		GroqAPIKey:       cfg.Providers.GroqAPIKey,
		GeminiAPIKey:     cfg.Providers.GeminiAPIKey,
		DeepgramAPIKey:   cfg.Providers.DeepgramAPIKey,
		ElevenLabsAPIKey: cfg.Providers.ElevenLabsAPIKey,
		AWSRegion:        cfg.Providers.AWSRegion,
	})

	recorder := observability.MultiRecorder{
		observability.NewLogRecorder(logger),
		observability.NewMetricsRecorder(prometheus.DefaultRegisterer),
	}
	pipe := pipeline.New(providers, st, recorder, pipeline.FallbackPolicy{})

	manager := auth.NewManager(cfg.Auth.JWTSecret)
	api := httpapi.New(st, manager, pipe, logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	return cfg.Build()
}

func fatal(what string, err error) {
	os.Stderr.WriteString(what + ": " + err.Error() + "\n")
	os.Exit(1)
}
