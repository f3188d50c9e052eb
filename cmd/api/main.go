// Package main is the entry point for the seedrelay server.
//
// It loads the configuration, builds the HTTP server with the core chassis
// (middleware, routing, probes), wires the delivery engine with its fallback
// channels, and starts listening for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"seedrelay/internal/api/handlers"
	"seedrelay/internal/config"
	"seedrelay/internal/core"
	"seedrelay/internal/delivery"
	"seedrelay/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("seedrelay starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"relay_url", cfg.Relay.URL,
	)

	recorder := metrics.NewRecorder(time.Now())

	srv, err := core.NewServer(cfg, logger, recorder)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// One HTTP client for all outbound calls. The per-attempt deadline is
	// enforced by the engine's contexts; the client timeout is a backstop.
	httpClient := &http.Client{Timeout: cfg.Relay.Timeout}

	engine := delivery.NewEngine(
		cfg.Relay.URL,
		cfg.Relay.IconURL,
		cfg.Relay.UserAgent,
		httpClient,
		buildFallbacks(cfg, httpClient, logger),
		logger,
	)

	eventHandler := handlers.NewEventHandler(engine, recorder, logger)
	opsHandler := handlers.NewOpsHandler(cfg, recorder, logger)

	srv.MountRoutes(
		eventHandler.RegisterRoutes,
		func(r chi.Router) {
			opsHandler.RegisterRoutes(r, srv.RequireAuthToken)
		},
	)

	return runHTTPServer(srv, cfg, logger)
}

// buildFallbacks wires the configured secondary channels in their fixed
// escalation order: Slack first, then Telegram. A channel missing its
// credentials is simply not wired.
func buildFallbacks(cfg *config.Config, client *http.Client, logger *slog.Logger) []delivery.FallbackChannel {
	var fallbacks []delivery.FallbackChannel

	if cfg.Fallback.SlackWebhookURL.IsSet() {
		fallbacks = append(fallbacks, delivery.NewSlackFallback(cfg.Fallback.SlackWebhookURL.Unmask(), client))
		logger.Info("fallback channel configured", "channel", "slack")
	}
	if cfg.Fallback.TelegramBotToken.IsSet() && cfg.Fallback.TelegramChatID != "" {
		fallbacks = append(fallbacks, delivery.NewTelegramFallback(
			cfg.Fallback.TelegramBotToken.Unmask(),
			cfg.Fallback.TelegramChatID,
			client,
		))
		logger.Info("fallback channel configured", "channel", "telegram")
	}
	if len(fallbacks) == 0 {
		logger.Warn("no fallback channels configured, exhausted deliveries will only be logged")
	}

	return fallbacks
}

// runHTTPServer starts the server with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
