package services

import (
	"cmp"
	"slices"
	"time"

	"trackify/internal/core"
)

const (
	UncategorizedName  = "Uncategorized"
	UncategorizedColor = "#9E9E9E"

	BillingTypeMonthly = "Monthly"
	BillingTypeYearly  = "Yearly, per-month"

	DefaultHistoryMonths = 6
	DefaultUpcomingDays  = 30
)

type (
	CategorySpend struct {
		CategoryID int64   `json:"category_id"`
		Name       string  `json:"name"`
		Color      string  `json:"color"`
		Amount     float64 `json:"amount"`
	}

	MonthSpend struct {
		Year   int        `json:"year"`
		Month  time.Month `json:"month"`
		Amount float64    `json:"amount"`
	}

	BillingTypeSpend struct {
		Label     string                `json:"label"`
		Frequency core.BillingFrequency `json:"frequency"`
		Amount    float64               `json:"amount"`
	}

	PaymentSummary struct {
		Count         int     `json:"count"`
		AutoGenerated int     `json:"auto_generated"`
		Total         float64 `json:"total"`
		Pending       float64 `json:"pending"`
		Confirmed     float64 `json:"confirmed"`
		Manual        float64 `json:"manual"`
	}

	UpcomingPayment struct {
		SubscriptionID int64     `json:"subscription_id"`
		Name           string    `json:"name"`
		Date           core.Date `json:"date"`
		DaysUntil      int       `json:"days_until"`
		Amount         float64   `json:"amount"`
	}

	// StatsInput is the full collection set a report is computed from.
	StatsInput struct {
		Subscriptions []core.Subscription
		Payments      []core.Payment
		Categories    []core.Category
	}

	StatsOptions struct {
		HistoryMonths int
		UpcomingDays  int
	}

	// Report bundles every aggregate for one day.
	Report struct {
		Date                core.Date          `json:"date"`
		ActiveSubscriptions int                `json:"active_subscriptions"`
		TotalMonthly        float64            `json:"total_monthly"`
		TotalYearly         float64            `json:"total_yearly"`
		Categories          []CategorySpend    `json:"categories"`
		History             []MonthSpend       `json:"history"`
		BillingTypes        []BillingTypeSpend `json:"billing_types"`
		Payments            PaymentSummary     `json:"payments"`
		Upcoming            []UpcomingPayment  `json:"upcoming"`
	}
)

// DefaultStatsOptions returns sensible defaults
func DefaultStatsOptions() StatsOptions {
	return StatsOptions{
		HistoryMonths: DefaultHistoryMonths,
		UpcomingDays:  DefaultUpcomingDays,
	}
}

// MonthlyEquivalent normalizes a subscription's price to one month.
func MonthlyEquivalent(sub core.Subscription) float64 {
	if sub.Frequency == core.Yearly {
		return sub.Price.Units() / 12
	}
	return sub.Price.Units()
}

// YearlyEquivalent normalizes a subscription's price to one year.
func YearlyEquivalent(sub core.Subscription) float64 {
	if sub.Frequency == core.Yearly {
		return sub.Price.Units()
	}
	return sub.Price.Units() * 12
}

func TotalMonthlySpend(subs []core.Subscription) float64 {
	var total float64
	for _, sub := range subs {
		if sub.Active {
			total += MonthlyEquivalent(sub)
		}
	}
	return total
}

func TotalYearlySpend(subs []core.Subscription) float64 {
	var total float64
	for _, sub := range subs {
		if sub.Active {
			total += YearlyEquivalent(sub)
		}
	}
	return total
}

// CategorySpending sums monthly equivalents per category. Subscriptions with no
// category, or one that no longer exists, land in the Uncategorized bucket.
func CategorySpending(subs []core.Subscription, categories []core.Category) []CategorySpend {
	known := make(map[int64]core.Category, len(categories))
	for _, c := range categories {
		known[c.ID] = c
	}

	buckets := make(map[int64]*CategorySpend)
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		c, ok := known[sub.CategoryID]
		id := sub.CategoryID
		if sub.CategoryID == 0 || !ok {
			id = 0
			c = core.Category{Name: UncategorizedName, Color: UncategorizedColor}
		}
		b, exists := buckets[id]
		if !exists {
			b = &CategorySpend{CategoryID: id, Name: c.Name, Color: c.Color}
			if b.Color == "" {
				b.Color = UncategorizedColor
			}
			buckets[id] = b
		}
		b.Amount += MonthlyEquivalent(sub)
	}

	out := make([]CategorySpend, 0, len(buckets))
	for _, b := range buckets {
		if b.Amount != 0 {
			out = append(out, *b)
		}
	}
	slices.SortFunc(out, func(a, b CategorySpend) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.CategoryID, b.CategoryID)
	})
	return out
}

// MonthlyHistory returns the spend of the last n calendar months, the current
// month last. A yearly subscription counts its full price in its anniversary
// month and a twelfth of it in every other month it is live.
func MonthlyHistory(subs []core.Subscription, now core.Date, n int) []MonthSpend {
	if n <= 0 {
		n = DefaultHistoryMonths
	}

	out := make([]MonthSpend, n)
	month, year := now.Month()-1, now.Year() // month index 0-11
	for i := n - 1; i >= 0; i-- {
		out[i] = MonthSpend{
			Year:   year,
			Month:  time.Month(month + 1),
			Amount: monthSpend(subs, year, month+1),
		}
		month--
		if month < 0 {
			month = 11
			year--
		}
	}
	return out
}

func monthSpend(subs []core.Subscription, year, month int) float64 {
	target := year*12 + month - 1
	var total float64
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		if target < sub.StartDate.Year()*12+sub.StartDate.Month()-1 {
			continue
		}
		if sub.HasEnd() && target > sub.EndDate.Year()*12+sub.EndDate.Month()-1 {
			continue
		}
		switch {
		case sub.Frequency != core.Yearly:
			total += sub.Price.Units()
		case sub.StartDate.Month() == month:
			total += sub.Price.Units()
		default:
			total += sub.Price.Units() / 12
		}
	}
	return total
}

// BillingTypeSpending splits spend by billing frequency. The monthly bucket sums
// monthly prices; the yearly bucket sums the yearly-equivalents of yearly
// subscriptions, which is their full price. The yearly label is kept as is even
// though its amount is not per month. Both buckets are always present, monthly first.
func BillingTypeSpending(subs []core.Subscription) []BillingTypeSpend {
	out := []BillingTypeSpend{
		{Label: BillingTypeMonthly, Frequency: core.Monthly},
		{Label: BillingTypeYearly, Frequency: core.Yearly},
	}
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		if sub.Frequency == core.Yearly {
			out[1].Amount += YearlyEquivalent(sub)
		} else {
			out[0].Amount += sub.Price.Units()
		}
	}
	return out
}

// SummarizePayments totals recorded payments by status.
func SummarizePayments(payments []core.Payment) PaymentSummary {
	var s PaymentSummary
	for _, p := range payments {
		amount := p.Amount.Units()
		s.Count++
		s.Total += amount
		if p.AutoGenerated {
			s.AutoGenerated++
		}
		switch p.Status {
		case core.StatusPending:
			s.Pending += amount
		case core.StatusConfirmed:
			s.Confirmed += amount
		case core.StatusManual:
			s.Manual += amount
		}
	}
	return s
}

// UpcomingPayments lists the next charge of every active subscription due
// within withinDays of today, soonest first.
func UpcomingPayments(subs []core.Subscription, today core.Date, withinDays int) []UpcomingPayment {
	today = core.DateOf(today.Time)
	var out []UpcomingPayment
	for _, sub := range subs {
		if !sub.Active || sub.Validate() != nil {
			continue
		}
		due, ok, err := NextDueWithin(sub, today)
		if err != nil || !ok {
			continue
		}
		days := DaysUntil(due, today)
		if days > withinDays {
			continue
		}
		out = append(out, UpcomingPayment{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Date:           due,
			DaysUntil:      days,
			Amount:         sub.Price.Units(),
		})
	}
	slices.SortFunc(out, func(a, b UpcomingPayment) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.SubscriptionID, b.SubscriptionID)
	})
	return out
}

// Aggregate computes the full report from the loaded collections.
func Aggregate(in StatsInput, now core.Date, opts StatsOptions) Report {
	now = core.DateOf(now.Time)
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = DefaultHistoryMonths
	}
	if opts.UpcomingDays < 0 {
		opts.UpcomingDays = 0
	}

	active := 0
	for _, sub := range in.Subscriptions {
		if sub.Active {
			active++
		}
	}

	return Report{
		Date:                now,
		ActiveSubscriptions: active,
		TotalMonthly:        TotalMonthlySpend(in.Subscriptions),
		TotalYearly:         TotalYearlySpend(in.Subscriptions),
		Categories:          CategorySpending(in.Subscriptions, in.Categories),
		History:             MonthlyHistory(in.Subscriptions, now, opts.HistoryMonths),
		BillingTypes:        BillingTypeSpending(in.Subscriptions),
		Payments:            SummarizePayments(in.Payments),
		Upcoming:            UpcomingPayments(in.Subscriptions, now, opts.UpcomingDays),
	}
}
