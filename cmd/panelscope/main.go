package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/bootstrap"
	"github.com/kailas-cloud/panelscope/internal/config"
	logpkg "github.com/kailas-cloud/panelscope/internal/logger"
	"github.com/kailas-cloud/panelscope/internal/metrics"
	chiTransport "github.com/kailas-cloud/panelscope/internal/transport/chi"
	"github.com/kailas-cloud/panelscope/internal/version"
)

func main() {
	// Secrets may live in .env; a missing file is fine.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting panelscope API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("relational_driver", cfg.Relational.Driver),
		zap.Strings("vector_addrs", cfg.Vector.Addrs),
	)

	// Registered explicitly, no init().
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	app, err := bootstrap.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build engine", zap.Error(err))
	}

	server := chiTransport.NewServer(app.Retrieval, app.Insights, app.Manager, app.Health, logger).
		WithUsage(app.Usage)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys,
		time.Duration(cfg.HTTP.RequestSec)*time.Second, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdown := time.Duration(cfg.HTTP.ShutdownSec) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := app.Close(shutdown); err != nil {
		logger.Warn("Worker pool did not drain", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
