package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceCustom  Cadence = "custom"
)

const (
	ReminderPaymentDue    ReminderKind = "payment_due"
	ReminderExpirationDue ReminderKind = "expiration_due"
)

type (
	// Cadence controls how often the reminder check itself may run.
	Cadence string

	ReminderKind string

	// ReminderSettings is the configuration the reminder engine runs with.
	ReminderSettings struct {
		Enabled      bool
		Offsets      []int // days before the event
		Cadence      Cadence
		WeeklyAnchor time.Weekday
	}

	ReminderEvent struct {
		SubscriptionID   int64
		SubscriptionName string
		Kind             ReminderKind
		DaysUntil        int
		EventDate        Date
	}
)

// DefaultReminderSettings mirrors the out-of-the-box preferences.
func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		Enabled:      true,
		Offsets:      []int{0, 1, 7},
		Cadence:      CadenceDaily,
		WeeklyAnchor: time.Monday,
	}
}

func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

func (c Cadence) Validate() error {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceCustom:
		return nil
	default:
		return fmt.Errorf("invalid notification cadence %q", string(c))
	}
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

func (s ReminderSettings) Validate() error {
	if err := s.Cadence.Validate(); err != nil {
		return err
	}
	for _, off := range s.Offsets {
		if off < 0 {
			return fmt.Errorf("reminder offset %d must not be negative", off)
		}
	}
	if s.WeeklyAnchor < time.Sunday || s.WeeklyAnchor > time.Saturday {
		return errors.New("weekly anchor must be a weekday")
	}
	return nil
}

// NormalizedOffsets returns the offsets sorted ascending without duplicates.
func (s ReminderSettings) NormalizedOffsets() []int {
	out := slices.Clone(s.Offsets)
	slices.Sort(out)
	return slices.Compact(out)
}

// Key identifies one reminder occurrence for delivery dedup.
func (e ReminderEvent) Key() string {
	return fmt.Sprintf("%d:%s:%s:%d", e.SubscriptionID, e.Kind, e.EventDate, e.DaysUntil)
}
