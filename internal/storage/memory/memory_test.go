package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackify/internal/core"
)

func seedSubscriptions(t *testing.T, s *Store, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := s.CreateSubscription(context.Background(), core.Subscription{ID: id, Name: "sub", Active: true})
		require.NoError(t, err)
	}
}

func TestStore_PaymentCycleIsUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSubscriptions(t, s, 1, 2)
	p := core.Payment{
		SubscriptionID: 1, Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 3, 15),
		Status: core.StatusPending, AutoGenerated: true, Cycle: 2,
	}

	_, err := s.InsertPayment(ctx, p)
	require.NoError(t, err)
	_, err = s.InsertPayment(ctx, p)
	assert.ErrorIs(t, err, core.ErrDuplicatePayment)

	p.SubscriptionID = 2
	_, err = s.InsertPayment(ctx, p)
	assert.NoError(t, err)
}

func TestStore_RejectsInvalidPayment(t *testing.T) {
	_, err := New().InsertPayment(context.Background(), core.Payment{SubscriptionID: 1, Date: core.NewDate(2024, 1, 1), Status: core.StatusManual})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestStore_InsertPaymentRequiresSubscription(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSubscriptions(t, s, 1)

	tests := []struct {
		name           string
		subscriptionID int64
		auto           bool
		wantErr        error
	}{
		{name: "existing subscription", subscriptionID: 1},
		{name: "unknown subscription", subscriptionID: 999, wantErr: core.ErrNotFound},
		{name: "unknown subscription auto-generated", subscriptionID: 999, auto: true, wantErr: core.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := s.InsertPayment(ctx, core.Payment{
				SubscriptionID: tt.subscriptionID, Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1),
				Status: core.StatusPending, AutoGenerated: tt.auto, Cycle: 1,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, id)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, id)
		})
	}

	payments, err := s.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestStore_LastPaymentAndRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSubscriptions(t, s, 7)
	for _, d := range []core.Date{core.NewDate(2024, 3, 1), core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1)} {
		_, err := s.InsertPayment(ctx, core.Payment{SubscriptionID: 7, Amount: core.Money{Cents: 1}, Date: d, Status: core.StatusManual})
		require.NoError(t, err)
	}

	last, err := s.LastPaymentFor(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, core.NewDate(2024, 3, 1), last.Date)

	none, err := s.LastPaymentFor(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, none)

	in, err := s.PaymentsInRange(ctx, 7, core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, core.NewDate(2024, 1, 1), in[0].Date)
}

func TestStore_SubscriptionsAndConfirm(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.CreateSubscription(ctx, core.Subscription{Name: "A", Active: true})
	require.NoError(t, err)
	_, err = s.CreateSubscription(ctx, core.Subscription{Name: "B"})
	require.NoError(t, err)

	active, err := s.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, id, active[0].ID)

	require.NoError(t, s.SetSubscriptionActive(ctx, id, false))
	active, err = s.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.ErrorIs(t, s.SetSubscriptionActive(ctx, 42, true), core.ErrNotFound)

	pid, err := s.InsertPayment(ctx, core.Payment{SubscriptionID: id, Amount: core.Money{Cents: 5}, Date: core.NewDate(2024, 1, 1), Status: core.StatusPending})
	require.NoError(t, err)
	require.NoError(t, s.ConfirmPayment(ctx, pid))
	assert.Error(t, s.ConfirmPayment(ctx, pid))
	assert.ErrorIs(t, s.ConfirmPayment(ctx, 999), core.ErrNotFound)
}

func TestStore_ReminderLedger(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.MarkReminderSent(ctx, "k", time.Now())
	require.NoError(t, err)
	assert.True(t, first)
	second, err := s.MarkReminderSent(ctx, "k", time.Now())
	require.NoError(t, err)
	assert.False(t, second)

	sent, err := s.ReminderSent(ctx, "k")
	require.NoError(t, err)
	assert.True(t, sent)
}
