package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"trackify/internal/core"
	logpkg "trackify/internal/log"
	"trackify/internal/ports"
)

// GeneratorStore is the persistence the generator needs.
type GeneratorStore interface {
	ports.SubscriptionReader
	ports.PaymentStore
}

// GeneratorConfig holds configuration for the payment generator
type GeneratorConfig struct {
	// DedupWindowDays is how many days around a due date an existing payment
	// suppresses generation (default: 1)
	DedupWindowDays int

	// Concurrency bounds how many subscriptions are processed at once (default: 4)
	Concurrency int
}

// DefaultGeneratorConfig returns sensible defaults
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		DedupWindowDays: 1,
		Concurrency:     4,
	}
}

// GenerationFailure is one subscription the run could not process.
type GenerationFailure struct {
	SubscriptionID int64
	Err            error
}

// GenerationReport summarizes one generator run.
type GenerationReport struct {
	Checked  int
	Created  int
	Skipped  int
	Failed   int
	Payments []core.Payment
	Failures []GenerationFailure
}

// PaymentGenerator materializes due subscription charges as pending payments.
type PaymentGenerator struct {
	store     GeneratorStore
	config    GeneratorConfig
	logger    *slog.Logger
	onCreated func(ctx context.Context)
}

// NewPaymentGenerator creates a new payment generator
func NewPaymentGenerator(store GeneratorStore, config GeneratorConfig, logger *slog.Logger) *PaymentGenerator {
	if config.DedupWindowDays < 0 {
		config.DedupWindowDays = 0
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentGenerator{
		store:  store,
		config: config,
		logger: logger.With(slog.String(logpkg.FieldComponent, logpkg.ComponentGenerator)),
	}
}

// OnPaymentsCreated registers fn to run after a pass that created at least one payment.
func (g *PaymentGenerator) OnPaymentsCreated(fn func(ctx context.Context)) {
	g.onCreated = fn
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeFailed
)

type subscriptionResult struct {
	outcome outcome
	payment core.Payment
	err     error
}

// Generate creates at most one payment per active subscription: the one for
// the latest cycle due on or before today, unless that cycle is already covered.
// Failures are isolated per subscription; only listing subscriptions or
// cancellation fails the whole run.
func (g *PaymentGenerator) Generate(ctx context.Context, today core.Date) (GenerationReport, error) {
	const op = "services.PaymentGenerator.Generate"
	today = core.DateOf(today.Time)

	subs, err := g.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return GenerationReport{}, fmt.Errorf("%s: list active subscriptions: %w", op, err)
	}

	g.logger.InfoContext(ctx, "Generating due payments",
		"total_active", len(subs),
		logpkg.FieldRunDate, today.String())

	results := make([]subscriptionResult, len(subs))
	var eg errgroup.Group
	eg.SetLimit(g.config.Concurrency)
	for i, sub := range subs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = subscriptionResult{outcome: outcomeFailed, err: err}
				return nil
			}
			results[i] = g.process(ctx, sub, today)
			return nil
		})
	}
	_ = eg.Wait()

	report := GenerationReport{Checked: len(subs)}
	for i, res := range results {
		switch res.outcome {
		case outcomeCreated:
			report.Created++
			report.Payments = append(report.Payments, res.payment)
		case outcomeFailed:
			report.Failed++
			report.Failures = append(report.Failures, GenerationFailure{SubscriptionID: subs[i].ID, Err: res.err})
		default:
			report.Skipped++
		}
	}
	slices.SortFunc(report.Payments, func(a, b core.Payment) int { return cmp.Compare(a.SubscriptionID, b.SubscriptionID) })
	slices.SortFunc(report.Failures, func(a, b GenerationFailure) int { return cmp.Compare(a.SubscriptionID, b.SubscriptionID) })

	if report.Created > 0 && g.onCreated != nil {
		g.onCreated(ctx)
	}

	g.logger.InfoContext(ctx, "Payment generation complete",
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"total_checked", report.Checked)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

func (g *PaymentGenerator) process(ctx context.Context, sub core.Subscription, today core.Date) subscriptionResult {
	payment, created, err := g.generateFor(ctx, sub, today)
	if err != nil {
		fields := logpkg.NewFields().
			WithSubscription(sub.ID, sub.Name, string(sub.Frequency)).
			WithOperation(logpkg.OpGenerate).
			WithErrorType(errorType(err)).
			WithError(err)
		g.logger.ErrorContext(ctx, "Failed to generate payment", fields.ToSlice()...)
		return subscriptionResult{outcome: outcomeFailed, err: err}
	}
	if !created {
		return subscriptionResult{outcome: outcomeSkipped}
	}

	g.logger.InfoContext(ctx, "Created payment from subscription",
		logpkg.FieldSubscriptionID, sub.ID,
		logpkg.FieldSubscription, sub.Name,
		logpkg.FieldPaymentID, payment.ID,
		logpkg.FieldCycle, payment.Cycle,
		logpkg.FieldDueDate, payment.Date.String(),
		logpkg.FieldAmountCents, payment.Amount.Cents)
	return subscriptionResult{outcome: outcomeCreated, payment: payment}
}

func (g *PaymentGenerator) generateFor(ctx context.Context, sub core.Subscription, today core.Date) (core.Payment, bool, error) {
	if err := sub.Validate(); err != nil {
		return core.Payment{}, false, core.NewIntegrityError(sub.ID, err)
	}

	cycle, due, ok, err := LatestDueDate(sub.StartDate, sub.Frequency, today)
	if err != nil {
		return core.Payment{}, false, core.NewIntegrityError(sub.ID, err)
	}
	if !ok || sub.EndedBefore(due) {
		return core.Payment{}, false, nil
	}

	last, err := g.store.LastPaymentFor(ctx, sub.ID)
	if err != nil {
		return core.Payment{}, false, fmt.Errorf("last payment: %w", err)
	}
	if last != nil && last.Date.After(today.Time) {
		// a payment recorded ahead of time is not a basis; only payments up to today count
		g.logger.DebugContext(ctx, "Ignoring future-dated payment",
			logpkg.FieldSubscriptionID, sub.ID,
			logpkg.FieldDueDate, due.String(),
			"payment_date", last.Date.String())
		paid, err := g.store.PaymentsInRange(ctx, sub.ID, due, today)
		if err != nil {
			return core.Payment{}, false, fmt.Errorf("payments since %s: %w", due, err)
		}
		if len(paid) > 0 {
			return core.Payment{}, false, nil
		}
	} else if last != nil && !last.Date.Before(due.Time) {
		return core.Payment{}, false, nil
	}

	w := g.config.DedupWindowDays
	nearby, err := g.store.PaymentsInRange(ctx, sub.ID, due.AddDays(-w), due.AddDays(w))
	if err != nil {
		return core.Payment{}, false, fmt.Errorf("payments near %s: %w", due, err)
	}
	if len(nearby) > 0 {
		g.logger.DebugContext(ctx, "Payment near due date already recorded",
			logpkg.FieldSubscriptionID, sub.ID,
			logpkg.FieldDueDate, due.String(),
			"existing", len(nearby))
		return core.Payment{}, false, nil
	}

	payment := core.Payment{
		SubscriptionID: sub.ID,
		Amount:         sub.Price,
		Date:           due,
		Status:         core.StatusPending,
		AutoGenerated:  true,
		Cycle:          cycle,
	}
	id, err := g.store.InsertPayment(ctx, payment)
	if errors.Is(err, core.ErrDuplicatePayment) {
		return core.Payment{}, false, nil
	}
	if err != nil {
		return core.Payment{}, false, fmt.Errorf("insert payment for cycle %d: %w", cycle, err)
	}
	payment.ID = id
	return payment, true, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrDataIntegrity):
		return logpkg.ErrorTypeIntegrity
	case core.IsTransient(err):
		return logpkg.ErrorTypeTransient
	default:
		return logpkg.ErrorTypeInternal
	}
}
