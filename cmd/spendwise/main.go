package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	apphttp "spendwise/internal/http"
	applog "spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	cfg = cli.LoadAndValidateConfig(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	svc := services.New(services.Deps{
		Store:     res.Store,
		Tokens:    auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Publisher: res.Publisher,
		Metrics:   m,
	})

	opts := apphttp.Options{
		Addr:          net.JoinHostPort("", cfg.Port),
		CORSOrigins:   cfg.CORSOrigins,
		AuthRateLimit: cfg.AuthRateLimit,
		Ready:         res.Store.Ping,
		Metrics:       m,
		Logger:        logger,
	}
	if cfg.DevTokenEndpoint {
		logger.WithComponent(applog.ComponentSecurity).Warn("Dev token endpoint enabled",
			"email", cfg.DevUserEmail)
		opts.DevUser = &services.RegisterInput{
			Username: cfg.DevUserName,
			Email:    cfg.DevUserEmail,
			Password: cfg.DevUserPassword,
		}
	}
	srv := apphttp.NewServer(opts, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spendwise server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events_enabled", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		return cli.Shutdown(logger, cfg.ShutdownTimeout,
			cli.ShutdownStep{Name: "http server", Close: srv.Shutdown},
			cli.ShutdownStep{Name: "backend", Close: func(context.Context) error { return res.Cleanup() }},
		)
	})
	return g.Wait()
}
