// Package main is the entry point for the Earth insights API.
//
// It loads the configuration, assembles the service graph, mounts the
// endpoint handlers on the core chassis and serves requests. Inside AWS
// Lambda the router is exposed through a function URL; elsewhere it runs as
// a plain HTTP server with graceful shutdown on SIGINT/SIGTERM.
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

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdaurl"

	"github.com/Beez1/bounceinsights/internal/api/handlers"
	"github.com/Beez1/bounceinsights/internal/app"
	"github.com/Beez1/bounceinsights/internal/config"
	"github.com/Beez1/bounceinsights/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("earth insights API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, a, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(srv, a, logger)
	}

	go a.RunMetrics(ctx)
	return runHTTPServer(ctx, srv, cfg, logger)
}

// buildServer assembles the service graph and mounts every route.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...app.Option) (*core.Server, *app.App, error) {
	opts = append([]app.Option{app.WithPublisher()}, opts...)
	a, err := app.Build(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building service graph: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = a.Metrics
	srv.MetricsHandler = a.MetricsHandler
	srv.HealthProbes = a.HealthProbes

	insightsHandler, err := handlers.NewInsightsHandler(a.Insights, srv.Validator, logger.With("component", "handlers"))
	if err != nil {
		return nil, nil, fmt.Errorf("creating handlers: %w", err)
	}
	srv.Registrars = append(srv.Registrars, insightsHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, a, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda serves the router through a Lambda function URL. Buffered
// metrics are flushed after each invocation and on SIGTERM.
func runLambda(srv *core.Server, a *app.App, logger *slog.Logger) error {
	handler := lambdaurl.Wrap(srv.Handler())

	flush := func(ctx context.Context) {
		if err := a.Flush(ctx); err != nil {
			logger.Warn("metrics flush failed", "error", err)
		}
	}

	lambda.StartWithOptions(
		func(ctx context.Context, req *events.LambdaFunctionURLRequest) (*events.LambdaFunctionURLStreamingResponse, error) {
			resp, err := handler(ctx, req)
			flush(ctx)
			return resp, err
		},
		lambda.WithEnableSIGTERM(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			flush(ctx)
		}),
	)
	return nil
}

// runHTTPServer serves until ctx is cancelled, then shuts down gracefully.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// WriteTimeout leaves room for the request budget plus the envelope.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
