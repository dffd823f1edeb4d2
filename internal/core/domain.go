package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly BillingFrequency = "monthly"
	Yearly  BillingFrequency = "yearly"
)

const (
	StatusPending   PaymentStatus = "pending"
	StatusConfirmed PaymentStatus = "confirmed"
	StatusManual    PaymentStatus = "manual"
)

type (
	BillingFrequency string

	PaymentStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Subscription struct {
		ID         int64
		Name       string
		Price      Money
		Frequency  BillingFrequency
		StartDate  Date
		EndDate    Date  // zero when open ended
		CategoryID int64 // 0 when uncategorized
		Active     bool
	}

	Payment struct {
		ID             int64
		SubscriptionID int64
		Amount         Money
		Date           Date
		Status         PaymentStatus
		AutoGenerated  bool
		Cycle          int // cycle ordinal since the subscription start, only set when AutoGenerated
		Notes          string
	}

	Category struct {
		ID    int64
		Name  string
		Color string
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidFrequency = errors.New("invalid billing frequency")
	ErrInvalidStatus    = errors.New("invalid payment status")
	ErrEndBeforeStart   = errors.New("end date must not be before start date")
)

// ParseFrequency accepts the frequency names case-insensitively.
func ParseFrequency(s string) (BillingFrequency, error) {
	f := BillingFrequency(strings.ToLower(strings.TrimSpace(s)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

func (f BillingFrequency) Validate() error {
	switch f {
	case Monthly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
}

func (s PaymentStatus) Validate() error {
	switch s {
	case StatusPending, StatusConfirmed, StatusManual:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day, read in the instant's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO calendar date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// AddDays shifts the date by whole calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String renders the date as 2006-01-02, or an empty string for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// HasEnd reports whether the subscription has a fixed end date.
func (s Subscription) HasEnd() bool {
	return !s.EndDate.IsEmpty()
}

// EndedBefore reports whether the subscription ended strictly before d.
func (s Subscription) EndedBefore(d Date) bool {
	return s.HasEnd() && s.EndDate.Before(d.Time)
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if err := s.Price.Validate(); err != nil {
		return err
	}
	if err := s.Frequency.Validate(); err != nil {
		return err
	}
	if err := s.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if s.HasEnd() {
		if err := s.EndDate.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if s.EndDate.Before(s.StartDate.Time) {
			return ErrEndBeforeStart
		}
	}
	return nil
}

func (p Payment) Validate() error {
	if p.SubscriptionID <= 0 {
		return errors.New("payment must reference a subscription")
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if err := p.Date.Validate(); err != nil {
		return fmt.Errorf("invalid payment date: %w", err)
	}
	if err := p.Status.Validate(); err != nil {
		return err
	}
	if p.AutoGenerated && p.Cycle < 0 {
		return errors.New("auto-generated payment needs a cycle ordinal")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
