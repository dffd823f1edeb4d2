// Package cli provides common initialization for the binaries: environment
// loading, logging, configuration and graceful shutdown. app.go wires the
// services on top of it.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trackify/internal/config"
	logpkg "trackify/internal/log"
)

// DefaultShutdownTimeout bounds how long a binary waits for in-flight work
// after a shutdown signal.
const DefaultShutdownTimeout = 30 * time.Second

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configuration and sets it as
// the default logger. An unknown level falls back to info; Validate reports it.
func SetupLogger(cfg *config.Config, component string) *logpkg.Logger {
	level, _ := logpkg.ParseLevel(cfg.LogLevel)

	logger := logpkg.New(logpkg.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stderr,
	})
	logpkg.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the environment, sets up logging and validates
// the configuration. Validation failures are logged before being returned.
func LoadAndValidateConfig(component string) (*config.Config, *logpkg.Logger, error) {
	LoadEnvFile()

	cfg := config.Load()
	logger := SetupLogger(cfg, component)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			logpkg.FieldError, err,
			logpkg.FieldErrorType, logpkg.ErrorTypeConfiguration)
		return nil, logger, err
	}
	return cfg, logger, nil
}

// RunUntilSignal runs fn with a context that is cancelled on SIGINT or
// SIGTERM, then waits up to timeout for fn to return.
func RunUntilSignal(logger *slog.Logger, timeout time.Duration, fn func(ctx context.Context) error) error {
	return runUntil(context.Background(), logger, timeout, fn, syscall.SIGINT, syscall.SIGTERM)
}

func runUntil(parent context.Context, logger *slog.Logger, timeout time.Duration, fn func(ctx context.Context) error, signals ...os.Signal) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return ignoreCanceled(err)
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}
	cancel()

	select {
	case err := <-done:
		logger.Info("Shutdown complete")
		return ignoreCanceled(err)
	case <-time.After(timeout):
		logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
		return errors.New("shutdown timed out")
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
