// Package services provides the billing engine: cycle arithmetic, payment
// generation, reminder decisions and spend statistics.
//
// This file implements the Strategy Pattern for billing cycle arithmetic.
// Each billing frequency has its own strategy that knows how to step an
// anchor date forward by whole periods.
//
// Month-end policy: the n-th occurrence is always computed from the anchor
// (anchor + n periods), never chained from the previous occurrence. When the
// anchor's day does not exist in the target month the day clamps to the last
// day of that month, so an anchor of Jan 31 yields Feb 28/29, Mar 31, Apr 30
// and a yearly anchor of Feb 29 yields Feb 28 in common years.
package services

import (
	"fmt"
	"time"

	"trackify/internal/core"
)

// CycleStrategy is the strategy interface for stepping through a billing schedule.
type CycleStrategy interface {
	// Occurrence returns the n-th scheduled date, n=0 being the anchor itself.
	Occurrence(anchor core.Date, n int) core.Date
	// ElapsedCycles returns how many whole periods separate the anchor's month
	// from the reference's month. Days are ignored; reference must not precede anchor.
	ElapsedCycles(anchor, reference core.Date) int
}

// MonthlyCycle implements CycleStrategy for monthly subscriptions.
type MonthlyCycle struct{}

func (MonthlyCycle) Occurrence(anchor core.Date, n int) core.Date {
	return addMonthsClamped(anchor, n)
}

func (MonthlyCycle) ElapsedCycles(anchor, reference core.Date) int {
	return monthsBetween(anchor, reference)
}

// YearlyCycle implements CycleStrategy for yearly subscriptions.
type YearlyCycle struct{}

func (YearlyCycle) Occurrence(anchor core.Date, n int) core.Date {
	return addMonthsClamped(anchor, 12*n)
}

func (YearlyCycle) ElapsedCycles(anchor, reference core.Date) int {
	return monthsBetween(anchor, reference) / 12
}

// cycleStrategies maps billing frequencies to their strategies.
var cycleStrategies = map[core.BillingFrequency]CycleStrategy{
	core.Monthly: MonthlyCycle{},
	core.Yearly:  YearlyCycle{},
}

// GetCycleStrategy returns the strategy for a billing frequency.
// Returns an error if the frequency is not supported.
func GetCycleStrategy(frequency core.BillingFrequency) (CycleStrategy, error) {
	strategy, ok := cycleStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, string(frequency))
	}
	return strategy, nil
}

// NextDueDate returns the smallest scheduled date on or after reference.
// The result is the anchor itself when reference does not come after it.
func NextDueDate(anchor core.Date, frequency core.BillingFrequency, reference core.Date) (core.Date, error) {
	_, due, err := nextCycle(anchor, frequency, reference)
	return due, err
}

// LatestDueDate returns the most recent scheduled date on or before reference
// together with its cycle ordinal. ok is false when reference precedes the anchor.
func LatestDueDate(anchor core.Date, frequency core.BillingFrequency, reference core.Date) (cycle int, due core.Date, ok bool, err error) {
	strategy, err := GetCycleStrategy(frequency)
	if err != nil {
		return 0, core.Date{}, false, err
	}
	anchor, reference = core.DateOf(anchor.Time), core.DateOf(reference.Time)
	if reference.Before(anchor.Time) {
		return 0, core.Date{}, false, nil
	}

	n, next, err := nextCycle(anchor, frequency, reference)
	if err != nil {
		return 0, core.Date{}, false, err
	}
	if next.Equal(reference.Time) {
		return n, next, true, nil
	}
	// next lies after reference, which lies after the anchor, so n >= 1
	return n - 1, strategy.Occurrence(anchor, n-1), true, nil
}

// Occurrence returns the n-th scheduled date of the schedule anchored at anchor.
func Occurrence(anchor core.Date, frequency core.BillingFrequency, n int) (core.Date, error) {
	strategy, err := GetCycleStrategy(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return strategy.Occurrence(core.DateOf(anchor.Time), n), nil
}

// NextDueWithin returns the subscription's next charge on or after reference.
// ok is false when that charge would fall after the subscription's end date.
func NextDueWithin(sub core.Subscription, reference core.Date) (due core.Date, ok bool, err error) {
	due, err = NextDueDate(sub.StartDate, sub.Frequency, reference)
	if err != nil {
		return core.Date{}, false, err
	}
	if sub.HasEnd() && due.After(core.DateOf(sub.EndDate.Time).Time) {
		return core.Date{}, false, nil
	}
	return due, true, nil
}

// DaysUntil returns the whole days from reference to target, negative when target is past.
func DaysUntil(target, reference core.Date) int {
	return int(epochDay(target) - epochDay(reference))
}

func nextCycle(anchor core.Date, frequency core.BillingFrequency, reference core.Date) (int, core.Date, error) {
	strategy, err := GetCycleStrategy(frequency)
	if err != nil {
		return 0, core.Date{}, err
	}
	anchor, reference = core.DateOf(anchor.Time), core.DateOf(reference.Time)
	if !reference.After(anchor.Time) {
		return 0, anchor, nil
	}

	n := strategy.ElapsedCycles(anchor, reference)
	due := strategy.Occurrence(anchor, n)
	if due.Before(reference.Time) {
		n++
		due = strategy.Occurrence(anchor, n)
	}
	return n, due, nil
}

func addMonthsClamped(anchor core.Date, months int) core.Date {
	total := anchor.Year()*12 + anchor.Month() - 1 + months
	year, month := total/12, total%12+1

	day := anchor.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func monthsBetween(from, to core.Date) int {
	return (to.Year()-from.Year())*12 + to.Month() - from.Month()
}

func epochDay(d core.Date) int64 {
	return core.DateOf(d.Time).Unix() / 86400
}
