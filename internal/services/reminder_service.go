package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trackify/internal/core"
	logpkg "trackify/internal/log"
	"trackify/internal/ports"
)

// ReminderStore is the persistence the reminder service needs.
type ReminderStore interface {
	ports.SubscriptionReader
	ports.ReminderLedger
}

// ReminderFailure is one reminder that could not be delivered.
type ReminderFailure struct {
	Event core.ReminderEvent
	Err   error
}

// ReminderReport summarizes one reminder pass.
type ReminderReport struct {
	// Ran is false when the cadence or the enabled flag skipped the pass.
	Ran        bool
	Evaluated  int
	Events     []core.ReminderEvent
	Delivered  int
	Suppressed int
	Failures   []ReminderFailure
}

// ReminderService loads subscriptions, decides which reminders are owed and
// hands each new one to the deliverer exactly once.
type ReminderService struct {
	store     ReminderStore
	settings  ports.ReminderSettingsProvider
	deliverer ports.ReminderDeliverer
	logger    *slog.Logger
	now       func() time.Time
}

// NewReminderService creates a new reminder service
func NewReminderService(store ReminderStore, settings ports.ReminderSettingsProvider, deliverer ports.ReminderDeliverer, logger *slog.Logger) *ReminderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderService{
		store:     store,
		settings:  settings,
		deliverer: deliverer,
		logger:    logger.With(slog.String(logpkg.FieldComponent, logpkg.ComponentReminder)),
		now:       time.Now,
	}
}

// Run performs one reminder pass for today. Settings are read on every pass.
func (s *ReminderService) Run(ctx context.Context, today core.Date) (ReminderReport, error) {
	const op = "services.ReminderService.Run"

	engine, err := NewReminderEngine(s.settings.ReminderSettings())
	if err != nil {
		return ReminderReport{}, fmt.Errorf("%s: reminder settings: %w", op, err)
	}
	if !engine.ShouldRun(today) {
		s.logger.DebugContext(ctx, "Reminder pass skipped by cadence",
			"cadence", engine.Settings().Cadence,
			"enabled", engine.Settings().Enabled,
			logpkg.FieldRunDate, today.String())
		return ReminderReport{}, nil
	}

	subs, err := s.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return ReminderReport{}, fmt.Errorf("%s: list active subscriptions: %w", op, err)
	}

	events := engine.Evaluate(subs, today)
	report := ReminderReport{Ran: true, Evaluated: len(subs), Events: events}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}

		sent, err := s.store.ReminderSent(ctx, ev.Key())
		if err != nil {
			s.fail(ctx, &report, ev, fmt.Errorf("check reminder ledger: %w", err))
			continue
		}
		if sent {
			report.Suppressed++
			continue
		}

		if err := s.deliverer.Deliver(ctx, ev); err != nil {
			s.fail(ctx, &report, ev, fmt.Errorf("deliver reminder: %w", err))
			continue
		}
		if _, err := s.store.MarkReminderSent(ctx, ev.Key(), s.now()); err != nil {
			// delivered but unrecorded, the next pass may send it again
			s.logger.WarnContext(ctx, "Failed to record delivered reminder",
				logpkg.FieldSubscriptionID, ev.SubscriptionID,
				logpkg.FieldReminderKind, ev.Kind,
				logpkg.FieldError, err)
		}
		report.Delivered++
	}

	s.logger.InfoContext(ctx, "Reminder pass complete",
		logpkg.FieldRunDate, today.String(),
		"owed", len(events),
		"delivered", report.Delivered,
		"suppressed", report.Suppressed,
		"failed", len(report.Failures))

	return report, nil
}

// Preview returns the reminders a pass for today would deliver, ignoring the
// cadence gate and without delivering or recording anything.
func (s *ReminderService) Preview(ctx context.Context, today core.Date) ([]core.ReminderEvent, error) {
	settings := s.settings.ReminderSettings()
	settings.Enabled = true
	engine, err := NewReminderEngine(settings)
	if err != nil {
		return nil, fmt.Errorf("reminder settings: %w", err)
	}
	subs, err := s.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}

	var pending []core.ReminderEvent
	for _, ev := range engine.Evaluate(subs, today) {
		sent, err := s.store.ReminderSent(ctx, ev.Key())
		if err != nil {
			return nil, fmt.Errorf("check reminder ledger: %w", err)
		}
		if !sent {
			pending = append(pending, ev)
		}
	}
	return pending, nil
}

func (s *ReminderService) fail(ctx context.Context, report *ReminderReport, ev core.ReminderEvent, err error) {
	report.Failures = append(report.Failures, ReminderFailure{Event: ev, Err: err})
	s.logger.ErrorContext(ctx, "Reminder delivery failed",
		logpkg.FieldSubscriptionID, ev.SubscriptionID,
		logpkg.FieldReminderKind, ev.Kind,
		logpkg.FieldDaysUntil, ev.DaysUntil,
		logpkg.FieldErrorType, logpkg.ErrorTypeDelivery,
		logpkg.FieldError, err)
}

// LogDeliverer delivers reminders by logging them. It stands in for the
// message broker when none is configured.
type LogDeliverer struct {
	logger *slog.Logger
}

func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(ctx context.Context, ev core.ReminderEvent) error {
	d.logger.InfoContext(ctx, "Reminder",
		logpkg.FieldSubscriptionID, ev.SubscriptionID,
		logpkg.FieldSubscription, ev.SubscriptionName,
		logpkg.FieldReminderKind, ev.Kind,
		logpkg.FieldDaysUntil, ev.DaysUntil,
		logpkg.FieldDueDate, ev.EventDate.String())
	return nil
}
