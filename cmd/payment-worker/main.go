package main

import (
	"context"
	"os"
	"time"

	"trackify/internal/cli"
	"trackify/internal/core"
	logpkg "trackify/internal/log"
	"trackify/internal/worker"
)

func main() {
	cfg, logger, err := cli.LoadAndValidateConfig(logpkg.ComponentGenerator)
	if err != nil {
		os.Exit(1)
	}

	logger.Info("Starting payment-worker",
		"interval", cfg.PaymentProcessorInterval.String(),
		"backend", cfg.DataBackend,
		"concurrency", cfg.GeneratorConcurrency)

	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize payment-worker", logpkg.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	scheduler, err := worker.NewScheduler("generate-payments", cfg.PaymentProcessorInterval,
		func(ctx context.Context, now time.Time) error {
			report, err := app.Generator.Generate(ctx, core.DateOf(now))
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "Payment generation complete",
				logpkg.FieldRunDate, core.DateOf(now).String(),
				"checked", report.Checked,
				"created", report.Created,
				"skipped", report.Skipped,
				"failed", report.Failed)
			return nil
		}, logger.Unscoped())
	if err != nil {
		logger.Error("Failed to create scheduler", logpkg.FieldError, err)
		os.Exit(1)
	}

	if err := cli.RunUntilSignal(logger.Logger, cli.DefaultShutdownTimeout, scheduler.Run); err != nil {
		logger.Error("payment-worker stopped with error", logpkg.FieldError, err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("payment-worker shutdown complete")
}
