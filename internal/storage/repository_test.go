package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackify/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "trackify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createSub(t *testing.T, repo *SQLiteRepository, s core.Subscription) int64 {
	t.Helper()
	id, err := repo.CreateSubscription(context.Background(), s)
	require.NoError(t, err)
	return id
}

func TestSubscriptions_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	catID, err := repo.CreateCategory(ctx, core.Category{Name: "Media", Color: "#FF5722"})
	require.NoError(t, err)

	openID := createSub(t, repo, core.Subscription{
		Name: "Music", Price: core.Money{Cents: 999}, Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 31), CategoryID: catID, Active: true,
	})
	endedID := createSub(t, repo, core.Subscription{
		Name: "Trial", Price: core.Money{Cents: 12000}, Frequency: core.Yearly,
		StartDate: core.NewDate(2023, 2, 1), EndDate: core.NewDate(2025, 1, 31), Active: true,
	})

	all, err := repo.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, core.Subscription{
		ID: openID, Name: "Music", Price: core.Money{Cents: 999}, Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 31), CategoryID: catID, Active: true,
	}, all[0])
	assert.Equal(t, endedID, all[1].ID)
	assert.Equal(t, core.NewDate(2025, 1, 31), all[1].EndDate)
	assert.Zero(t, all[1].CategoryID)

	require.NoError(t, repo.SetSubscriptionActive(ctx, endedID, false))
	active, err := repo.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, openID, active[0].ID)

	err = repo.SetSubscriptionActive(ctx, 999, true)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateCategory(ctx, core.Category{Name: "  "})
	assert.ErrorIs(t, err, core.ErrEmptyName)

	for _, name := range []string{"Work", "Home"} {
		_, err := repo.CreateCategory(ctx, core.Category{Name: name})
		require.NoError(t, err)
	}
	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Home", categories[0].Name)
}

func TestInsertPayment_UniqueCycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	subID := createSub(t, repo, core.Subscription{
		Name: "Gym", Price: core.Money{Cents: 3000}, Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 15), Active: true,
	})

	auto := core.Payment{
		SubscriptionID: subID, Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 3, 15),
		Status: core.StatusPending, AutoGenerated: true, Cycle: 2,
	}
	id, err := repo.InsertPayment(ctx, auto)
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = repo.InsertPayment(ctx, auto)
	assert.ErrorIs(t, err, core.ErrDuplicatePayment)

	// manual payments have no cycle and never collide
	manual := core.Payment{
		SubscriptionID: subID, Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 3, 16),
		Status: core.StatusManual, Notes: "cash",
	}
	for range 2 {
		_, err := repo.InsertPayment(ctx, manual)
		require.NoError(t, err)
	}

	payments, err := repo.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, 2, payments[0].Cycle)
	assert.True(t, payments[0].AutoGenerated)
	assert.Equal(t, "cash", payments[1].Notes)
}

func TestInsertPayment_UnknownSubscription(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	tests := []struct {
		name    string
		payment core.Payment
	}{
		{
			name: "manual",
			payment: core.Payment{
				SubscriptionID: 999, Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1),
				Status: core.StatusManual,
			},
		},
		{
			name: "auto-generated",
			payment: core.Payment{
				SubscriptionID: 999, Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1),
				Status: core.StatusPending, AutoGenerated: true, Cycle: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := repo.InsertPayment(ctx, tt.payment)
			require.Error(t, err)
			assert.Zero(t, id)
			assert.ErrorIs(t, err, core.ErrNotFound)
			assert.False(t, core.IsTransient(err))
		})
	}

	payments, err := repo.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestInsertPayment_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	subID := createSub(t, repo, core.Subscription{
		Name: "Gym", Price: core.Money{Cents: 3000}, Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 15), Active: true,
	})

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		inserted   int
		duplicates int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.InsertPayment(ctx, core.Payment{
				SubscriptionID: subID, Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 2, 15),
				Status: core.StatusPending, AutoGenerated: true, Cycle: 1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, core.ErrDuplicatePayment):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Equal(t, 7, duplicates)
}

func TestPaymentQueries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	subID := createSub(t, repo, core.Subscription{
		Name: "News", Price: core.Money{Cents: 500}, Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 10), Active: true,
	})

	last, err := repo.LastPaymentFor(ctx, subID)
	require.NoError(t, err)
	assert.Nil(t, last)

	for i, d := range []core.Date{core.NewDate(2024, 1, 10), core.NewDate(2024, 2, 10), core.NewDate(2024, 3, 10)} {
		_, err := repo.InsertPayment(ctx, core.Payment{
			SubscriptionID: subID, Amount: core.Money{Cents: 500}, Date: d,
			Status: core.StatusPending, AutoGenerated: true, Cycle: i,
		})
		require.NoError(t, err)
	}

	last, err = repo.LastPaymentFor(ctx, subID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, core.NewDate(2024, 3, 10), last.Date)

	tests := []struct {
		name     string
		from, to core.Date
		want     int
	}{
		{"inclusive bounds", core.NewDate(2024, 2, 10), core.NewDate(2024, 3, 10), 2},
		{"window around a due date", core.NewDate(2024, 2, 9), core.NewDate(2024, 2, 11), 1},
		{"empty window", core.NewDate(2024, 2, 11), core.NewDate(2024, 3, 9), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.PaymentsInRange(ctx, subID, tt.from, tt.to)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	subID := createSub(t, repo, core.Subscription{
		Name: "News", Price: core.Money{Cents: 500}, Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 10), Active: true,
	})
	id, err := repo.InsertPayment(ctx, core.Payment{
		SubscriptionID: subID, Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 1, 10),
		Status: core.StatusPending, AutoGenerated: true,
	})
	require.NoError(t, err)

	require.NoError(t, repo.ConfirmPayment(ctx, id))
	assert.Error(t, repo.ConfirmPayment(ctx, id))
	assert.ErrorIs(t, repo.ConfirmPayment(ctx, 12345), core.ErrNotFound)

	payments, err := repo.ListPayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusConfirmed, payments[0].Status)
}

func TestReminderLedger(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	at := time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)

	sent, err := repo.ReminderSent(ctx, "1:payment_due:2024-03-15:7")
	require.NoError(t, err)
	assert.False(t, sent)

	first, err := repo.MarkReminderSent(ctx, "1:payment_due:2024-03-15:7", at)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.MarkReminderSent(ctx, "1:payment_due:2024-03-15:7", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, again)

	sent, err = repo.ReminderSent(ctx, "1:payment_due:2024-03-15:7")
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackify.db")
	for range 2 {
		repo, err := NewSQLiteRepository(path)
		require.NoError(t, err)
		require.NoError(t, repo.Close())
	}
}
