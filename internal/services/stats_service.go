package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"trackify/internal/cache"
	"trackify/internal/core"
	logpkg "trackify/internal/log"
	"trackify/internal/ports"
)

// StatsStore is the persistence the statistics service reads from.
type StatsStore interface {
	ports.SubscriptionReader
	ports.CategoryReader
	ListPayments(ctx context.Context) ([]core.Payment, error)
}

// StatsService computes statistics reports on read and caches them until the
// underlying data changes.
type StatsService struct {
	store      StatsStore
	cache      cache.Cache[Report]
	opts       StatsOptions
	logger     *slog.Logger
	group      singleflight.Group
	generation atomic.Uint64
}

// NewStatsService creates a new statistics service. A nil cache disables caching.
func NewStatsService(store StatsStore, reports cache.Cache[Report], opts StatsOptions, logger *slog.Logger) *StatsService {
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = DefaultHistoryMonths
	}
	if opts.UpcomingDays < 0 {
		opts.UpcomingDays = DefaultUpcomingDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{
		store:  store,
		cache:  reports,
		opts:   opts,
		logger: logger.With(slog.String(logpkg.FieldComponent, logpkg.ComponentStats)),
	}
}

// Options returns the options reports are computed with.
func (s *StatsService) Options() StatsOptions {
	return s.opts
}

// Report returns the statistics for the day of now.
func (s *StatsService) Report(ctx context.Context, now time.Time) (Report, error) {
	return s.ReportFor(ctx, core.DateOf(now), s.opts.HistoryMonths)
}

// ReportFor returns the statistics for day with a history of months months.
// Concurrent callers asking for the same report share one computation.
func (s *StatsService) ReportFor(ctx context.Context, day core.Date, months int) (Report, error) {
	if months <= 0 {
		months = s.opts.HistoryMonths
	}
	key := reportKey(day, months)

	if s.cache != nil {
		if report, ok := s.cache.Get(ctx, key); ok {
			s.logger.DebugContext(ctx, "Statistics cache hit", logpkg.FieldCacheKey, key)
			return report, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// the result is shared by every waiting caller, so one caller's
		// cancellation must not fail the others
		ctx := context.WithoutCancel(ctx)
		generation := s.generation.Load()
		start := time.Now()

		report, err := s.compute(ctx, day, months)
		if err != nil {
			return Report{}, err
		}
		// a concurrent invalidation means the data we read may already be stale
		if s.cache != nil && s.generation.Load() == generation {
			s.cache.Set(ctx, key, report)
		}

		s.logger.DebugContext(ctx, "Statistics computed",
			logpkg.FieldCacheKey, key,
			logpkg.FieldDuration, time.Since(start).Milliseconds())
		return report, nil
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

// Invalidate drops every cached report. Callers use it after changing
// subscriptions, payments or categories.
func (s *StatsService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.cache == nil {
		return
	}
	s.cache.Clear(ctx)
	s.logger.DebugContext(ctx, "Statistics cache invalidated")
}

func (s *StatsService) compute(ctx context.Context, day core.Date, months int) (Report, error) {
	const op = "services.StatsService.compute"

	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: list subscriptions: %w", op, err)
	}
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: list payments: %w", op, err)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: list categories: %w", op, err)
	}

	opts := s.opts
	opts.HistoryMonths = months
	return Aggregate(StatsInput{
		Subscriptions: subs,
		Payments:      payments,
		Categories:    categories,
	}, day, opts), nil
}

func reportKey(day core.Date, months int) string {
	return fmt.Sprintf("stats:%s:%d", day, months)
}
