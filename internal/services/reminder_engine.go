package services

import (
	"cmp"
	"slices"

	"trackify/internal/core"
)

// ReminderEngine decides which reminders are owed on a given day. It holds
// no state beyond its settings and performs no I/O.
type ReminderEngine struct {
	settings core.ReminderSettings
	offsets  []int
}

// NewReminderEngine validates settings and builds an engine from them.
func NewReminderEngine(settings core.ReminderSettings) (*ReminderEngine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &ReminderEngine{
		settings: settings,
		offsets:  settings.NormalizedOffsets(),
	}, nil
}

// Settings returns the settings the engine was built with.
func (e *ReminderEngine) Settings() core.ReminderSettings {
	return e.settings
}

// ShouldRun gates a reminder pass on the configured cadence.
func (e *ReminderEngine) ShouldRun(today core.Date) bool {
	if !e.settings.Enabled {
		return false
	}
	switch e.settings.Cadence {
	case core.CadenceWeekly:
		return today.Weekday() == e.settings.WeeklyAnchor
	case core.CadenceMonthly:
		return today.Day() == 1
	default:
		// daily and custom both run on every invocation
		return true
	}
}

// Evaluate returns the reminders owed today, ordered by subscription id with
// the payment reminder ahead of the expiration reminder.
func (e *ReminderEngine) Evaluate(subs []core.Subscription, today core.Date) []core.ReminderEvent {
	today = core.DateOf(today.Time)

	var events []core.ReminderEvent
	for _, sub := range subs {
		if !sub.Active || sub.Validate() != nil {
			continue
		}

		if due, ok, err := NextDueWithin(sub, today); err == nil && ok {
			if days := DaysUntil(due, today); e.matches(days) {
				events = append(events, core.ReminderEvent{
					SubscriptionID:   sub.ID,
					SubscriptionName: sub.Name,
					Kind:             core.ReminderPaymentDue,
					DaysUntil:        days,
					EventDate:        due,
				})
			}
		}

		if sub.HasEnd() {
			end := core.DateOf(sub.EndDate.Time)
			if days := DaysUntil(end, today); days >= 0 && e.matches(days) {
				events = append(events, core.ReminderEvent{
					SubscriptionID:   sub.ID,
					SubscriptionName: sub.Name,
					Kind:             core.ReminderExpirationDue,
					DaysUntil:        days,
					EventDate:        end,
				})
			}
		}
	}

	slices.SortStableFunc(events, func(a, b core.ReminderEvent) int {
		if c := cmp.Compare(a.SubscriptionID, b.SubscriptionID); c != 0 {
			return c
		}
		return cmp.Compare(kindRank(a.Kind), kindRank(b.Kind))
	})
	return events
}

func (e *ReminderEngine) matches(days int) bool {
	_, found := slices.BinarySearch(e.offsets, days)
	return found
}

func kindRank(k core.ReminderKind) int {
	if k == core.ReminderPaymentDue {
		return 0
	}
	return 1
}
