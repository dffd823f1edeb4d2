package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trackify/internal/amqp"
	"trackify/internal/backend"
	"trackify/internal/cache"
	"trackify/internal/config"
	logpkg "trackify/internal/log"
	"trackify/internal/services"
)

// amqpConnectAttempts bounds the broker dial retries at startup.
const amqpConnectAttempts = 5

// App holds the services a binary runs, built over one backend.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Backend   backend.Backend
	Stats     *services.StatsService
	Generator *services.PaymentGenerator

	scoped  *slog.Logger // handed to packages that add their own component
	closers []func() error
}

// NewApp opens the configured backend and statistics cache and builds the
// generator and statistics services. The generator invalidates cached
// statistics whenever it creates payments.
func NewApp(ctx context.Context, cfg *config.Config, logger *logpkg.Logger) (*App, error) {
	if logger == nil {
		logger = logpkg.New(logpkg.DefaultConfig())
	}
	app := &App{Config: cfg, Logger: logger.Logger, scoped: logger.Unscoped()}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	result, err := backend.NewFactory(app.scoped).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	app.Backend = result.Backend
	app.closers = append(app.closers, result.Close)

	reports := app.statsCache(ctx)
	app.Stats = services.NewStatsService(app.Backend, reports, services.StatsOptions{
		HistoryMonths: cfg.StatsHistoryMonths,
		UpcomingDays:  cfg.StatsUpcomingDays,
	}, app.scoped)

	app.Generator = services.NewPaymentGenerator(app.Backend, services.GeneratorConfig{
		DedupWindowDays: cfg.DedupWindowDays,
		Concurrency:     cfg.GeneratorConcurrency,
	}, app.scoped)
	app.Generator.OnPaymentsCreated(app.Stats.Invalidate)

	return app, nil
}

// statsCache shares reports through Redis when configured. An unreachable
// Redis falls back to the in-process cache since reports can always be recomputed.
func (a *App) statsCache(ctx context.Context) cache.Cache[services.Report] {
	if a.Config.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, a.Config.RedisURL)
		if err == nil {
			a.closers = append(a.closers, client.Close)
			a.Logger.InfoContext(ctx, "Statistics cache backed by Redis")
			return cache.NewRedisCache[services.Report](client, "stats", a.Config.StatsCacheTTL, a.scoped)
		}
		a.Logger.WarnContext(ctx, "Redis unavailable, using in-process statistics cache", logpkg.FieldError, err)
	}

	lru := cache.NewLRUCache[services.Report](a.Config.StatsCacheSize, a.Config.StatsCacheTTL)
	manager := cache.NewManager(a.scoped)
	manager.Register(lru)
	manager.StartCleanup(a.Config.StatsCacheTTL)
	a.closers = append(a.closers, func() error {
		manager.Stop()
		return nil
	})
	return lru
}

// ReminderService builds the reminder service. With deliver false, or when no
// broker is configured, reminders are written to the log instead of published.
func (a *App) ReminderService(ctx context.Context, deliver bool) (*services.ReminderService, error) {
	if !deliver || a.Config.AMQPURL == "" {
		return services.NewReminderService(a.Backend, a.Config, services.NewLogDeliverer(a.scoped), a.scoped), nil
	}

	client, err := a.Broker(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewReminderService(a.Backend, a.Config, client, a.scoped), nil
}

// Broker connects to the configured AMQP broker. The connection is closed with the app.
func (a *App) Broker(ctx context.Context) (*amqp.Client, error) {
	if a.Config.AMQPURL == "" {
		return nil, errors.New("AMQP_URL is not set")
	}
	client, err := amqp.Connect(ctx, a.Config.AMQPURL, a.Config.AMQPExchange, a.Config.AMQPQueue, amqpConnectAttempts, a.scoped)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.Logger.InfoContext(ctx, "Connected to message broker",
		"exchange", a.Config.AMQPExchange,
		"queue", a.Config.AMQPQueue)
	return client, nil
}

// Close releases everything the app opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
