// Package cli holds the start-up and shutdown steps shared by the
// commands under cmd/.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendwise/internal/config"
	applog "spendwise/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(level, format string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Format:    format,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.UsesDefaultSecret() {
		logger.WithComponent(applog.ComponentSecurity).Warn(
			"JWT_SECRET_KEY is not set; tokens are signed with the built-in development key")
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownStep is one resource to release on exit.
type ShutdownStep struct {
	Name  string
	Close func(ctx context.Context) error
}

// Shutdown runs steps in order under a shared deadline. Every step runs
// even when an earlier one fails; the failures are joined.
func Shutdown(logger *applog.Logger, timeout time.Duration, steps ...ShutdownStep) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, step := range steps {
		if step.Close == nil {
			continue
		}
		if err := step.Close(ctx); err != nil {
			logger.Error("Shutdown step failed",
				applog.FieldOperation, applog.OpShutdown,
				"step", step.Name,
				applog.FieldError, err)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		logger.Debug("Shutdown step complete", "step", step.Name)
	}

	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
	}
	return errors.Join(errs...)
}
