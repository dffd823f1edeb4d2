package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateOfTruncatesToCalendarDay(t *testing.T) {
	rome := time.FixedZone("CET", 3600)
	instant := time.Date(2024, 3, 1, 0, 30, 0, 0, rome) // still Feb 29 in UTC

	got := DateOf(instant)
	if got != NewDate(2024, 3, 1) {
		t.Fatalf("DateOf() = %s, want 2024-03-01", got)
	}
	if !DateOf(time.Time{}).IsEmpty() {
		t.Fatalf("DateOf(zero) should stay empty")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ")
	if err != nil || d != NewDate(2024, 2, 29) {
		t.Fatalf("ParseDate() = %s, %v", d, err)
	}
	if _, err := ParseDate("29/02/2024"); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestSubscriptionValidate(t *testing.T) {
	good := Subscription{
		ID:        1,
		Name:      "Streaming",
		Price:     Money{Cents: 999},
		Frequency: Monthly,
		StartDate: NewDate(2024, 1, 15),
		Active:    true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Subscription)
		want   error
	}{
		{"empty name", func(s *Subscription) { s.Name = "  " }, ErrEmptyName},
		{"zero price", func(s *Subscription) { s.Price = Money{} }, ErrInvalidAmount},
		{"negative price", func(s *Subscription) { s.Price = Money{Cents: -5} }, ErrInvalidAmount},
		{"unknown frequency", func(s *Subscription) { s.Frequency = "weekly" }, ErrInvalidFrequency},
		{"end before start", func(s *Subscription) { s.EndDate = NewDate(2023, 12, 31) }, ErrEndBeforeStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := good
			tt.mutate(&s)
			if err := s.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	sameDay := good
	sameDay.EndDate = good.StartDate
	if err := sameDay.Validate(); err != nil {
		t.Fatalf("end equal to start should be valid, got %v", err)
	}
}

func TestPaymentValidate(t *testing.T) {
	good := Payment{
		SubscriptionID: 1,
		Amount:         Money{Cents: 100},
		Date:           NewDate(2024, 3, 15),
		Status:         StatusPending,
		AutoGenerated:  true,
		Cycle:          2,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Payment{
		{Amount: Money{Cents: 1}, Date: NewDate(2024, 1, 1), Status: StatusPending},
		{SubscriptionID: 1, Amount: Money{Cents: 0}, Date: NewDate(2024, 1, 1), Status: StatusPending},
		{SubscriptionID: 1, Amount: Money{Cents: 1}, Status: StatusPending},
		{SubscriptionID: 1, Amount: Money{Cents: 1}, Date: NewDate(2024, 1, 1), Status: "refunded"},
		{SubscriptionID: 1, Amount: Money{Cents: 1}, Date: NewDate(2024, 1, 1), Status: StatusPending, AutoGenerated: true, Cycle: -1},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestIntegrityErrorMatchesSentinel(t *testing.T) {
	err := NewIntegrityError(7, ErrInvalidAmount)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("expected IntegrityError to match ErrDataIntegrity")
	}
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected IntegrityError to unwrap the cause")
	}
	if IsTransient(err) {
		t.Fatalf("integrity errors are not transient")
	}
}

func TestParseFrequency(t *testing.T) {
	if f, err := ParseFrequency("YEARLY"); err != nil || f != Yearly {
		t.Fatalf("ParseFrequency(YEARLY) = %q, %v", f, err)
	}
	if _, err := ParseFrequency("biweekly"); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}
