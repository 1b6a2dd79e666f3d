package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/amqp"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	applog "spendwise/internal/log"
	"spendwise/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	cfg = cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the events worker")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Events worker exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Events worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// The worker only reads, so it opens the store without a publisher.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		_ = res.Cleanup()
		return err
	}

	w := worker.NewActivityWorker(res.Store, logger)
	logger.Info("Starting events worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeEvents(gctx, w.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	err = g.Wait()

	shutdownErr := cli.Shutdown(logger, cfg.ShutdownTimeout,
		cli.ShutdownStep{Name: "amqp", Close: func(context.Context) error { return client.Close() }},
		cli.ShutdownStep{Name: "backend", Close: func(context.Context) error { return res.Cleanup() }},
	)
	return errors.Join(err, shutdownErr)
}
