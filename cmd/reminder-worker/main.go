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
	cfg, logger, err := cli.LoadAndValidateConfig(logpkg.ComponentReminder)
	if err != nil {
		os.Exit(1)
	}

	logger.Info("Starting reminder-worker",
		"interval", cfg.ReminderProcessorInterval.String(),
		"backend", cfg.DataBackend,
		"cadence", cfg.NotificationCadence,
		"amqp_enabled", cfg.AMQPURL != "")

	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize reminder-worker", logpkg.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, reminders are written to the log")
	}
	reminders, err := app.ReminderService(ctx, true)
	if err != nil {
		logger.Error("Failed to initialize reminder delivery", logpkg.FieldError, err)
		app.Close()
		os.Exit(1)
	}

	scheduler, err := worker.NewScheduler("send-reminders", cfg.ReminderProcessorInterval,
		func(ctx context.Context, now time.Time) error {
			report, err := reminders.Run(ctx, core.DateOf(now))
			if err != nil {
				return err
			}
			if !report.Ran {
				return nil
			}
			logger.InfoContext(ctx, "Reminder pass complete",
				logpkg.FieldRunDate, core.DateOf(now).String(),
				"evaluated", report.Evaluated,
				"events", len(report.Events),
				"delivered", report.Delivered,
				"suppressed", report.Suppressed,
				"failed", len(report.Failures))
			return nil
		}, logger.Unscoped())
	if err != nil {
		logger.Error("Failed to create scheduler", logpkg.FieldError, err)
		app.Close()
		os.Exit(1)
	}

	if err := cli.RunUntilSignal(logger.Logger, cli.DefaultShutdownTimeout, scheduler.Run); err != nil {
		logger.Error("reminder-worker stopped with error", logpkg.FieldError, err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("reminder-worker shutdown complete")
}
