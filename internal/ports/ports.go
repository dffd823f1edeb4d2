// Package ports declares the collaborators the billing engine consumes and produces to.
package ports

import (
	"context"
	"time"

	"trackify/internal/core"
)

// Persistence collaborator.
type (
	SubscriptionReader interface {
		// ListActiveSubscriptions returns subscriptions with Active set.
		ListActiveSubscriptions(ctx context.Context) ([]core.Subscription, error)
		ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
	}

	PaymentStore interface {
		// LastPaymentFor returns the most recent payment by date, or nil when none exists.
		LastPaymentFor(ctx context.Context, subscriptionID int64) (*core.Payment, error)
		// PaymentsInRange returns payments dated within [from, to], both inclusive.
		PaymentsInRange(ctx context.Context, subscriptionID int64, from, to core.Date) ([]core.Payment, error)
		// InsertPayment stores p and returns its id. A second auto-generated payment
		// for the same subscription cycle fails with core.ErrDuplicatePayment; a
		// payment for an unknown subscription fails with core.ErrNotFound.
		InsertPayment(ctx context.Context, p core.Payment) (int64, error)
		ListPayments(ctx context.Context) ([]core.Payment, error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	// ReminderLedger remembers which reminders were already delivered.
	ReminderLedger interface {
		// MarkReminderSent records key and reports whether it was new.
		MarkReminderSent(ctx context.Context, key string, at time.Time) (bool, error)
		// ReminderSent reports whether key was recorded by an earlier run.
		ReminderSent(ctx context.Context, key string) (bool, error)
	}
)

// Write side, used by the operator CLI only.
type (
	SubscriptionWriter interface {
		CreateSubscription(ctx context.Context, s core.Subscription) (int64, error)
		SetSubscriptionActive(ctx context.Context, id int64, active bool) error
	}

	CategoryWriter interface {
		CreateCategory(ctx context.Context, c core.Category) (int64, error)
	}

	PaymentWriter interface {
		// ConfirmPayment moves a pending payment to confirmed.
		ConfirmPayment(ctx context.Context, id int64) error
	}
)

// Configuration collaborator.
type ReminderSettingsProvider interface {
	ReminderSettings() core.ReminderSettings
}

// Notification delivery collaborator.
type ReminderDeliverer interface {
	Deliver(ctx context.Context, ev core.ReminderEvent) error
}
