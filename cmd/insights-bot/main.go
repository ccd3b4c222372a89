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

	"github.com/finsight/insights-bot/pkg/assistant"
	"github.com/finsight/insights-bot/pkg/config"
	"github.com/finsight/insights-bot/pkg/dynamodb"
	"github.com/finsight/insights-bot/pkg/handler"
	slackclient "github.com/finsight/insights-bot/pkg/slack"
	"github.com/finsight/insights-bot/pkg/threadstore"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newThreadStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init thread store: %w", err)
	}

	asst := assistant.NewClient(cfg.OpenAIAPIKey, cfg.AssistantID, logger,
		assistant.WithBaseURL(cfg.OpenAIBaseURL),
		assistant.WithPollPolicy(assistant.PollPolicy{
			Interval:    cfg.RunPollInterval(),
			MaxAttempts: cfg.RunPollMaxAttempts,
		}),
	)
	messenger := slackclient.NewClient(cfg.SlackBotToken, logger)
	runner := handler.NewAsyncRunner(logger, 10*time.Minute)

	mux := http.NewServeMux()
	handler.NewEventHandler(cfg.SlackSigningSecret, cfg.SlackAppID, messenger, asst, store, runner, logger).RegisterRoutes(mux)
	handler.NewInjectHandler(messenger, asst, store, runner, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr, "thread_store", cfg.ThreadStoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	// Let in-flight assistant turns finish so replies are not dropped.
	if err := runner.Drain(shutdownCtx); err != nil {
		logger.Error("background jobs did not drain", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newThreadStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (threadstore.Store, error) {
	switch cfg.ThreadStoreBackend {
	case config.BackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return dynamodb.NewThreadRepository(client, cfg.ThreadsTable), nil
	default:
		return threadstore.NewFileStore(cfg.ThreadMapPath, logger)
	}
}
