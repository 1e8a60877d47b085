package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/inquiry-analyzer/internal/app"
	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("speech_backend", cfg.SpeechBackend).
		Int("segment_workers", cfg.SegmentWorkers).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Inquiry Analyzer Service starting")

	if err := cfg.RemoteSettings(); err != nil {
		logger.Warn().Err(err).Msg("watsonx.ai is not configured; intent and resolution requests will fail")
	}

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.WatchTiers(ctx)

	// gRPC health service mirrors /ready
	if cfg.GRPCHealthPort != "" && cfg.GRPCHealthPort != "0" {
		grpcHealth := observability.NewGRPCHealth(15*time.Second, a.Checks()...)
		go func() {
			if err := grpcHealth.Serve(ctx, net.JoinHostPort("", cfg.GRPCHealthPort)); err != nil {
				logger.Error().Err(err).Msg("gRPC health server failed")
			}
		}()
	}

	// Long recordings can take minutes to transcribe, so there is no write timeout
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/analyze", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
