package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackify/internal/cache"
	"trackify/internal/core"
	"trackify/internal/storage/memory"
)

// countingStore counts full loads of the subscription list.
type countingStore struct {
	*memory.Store
	loads atomic.Int32
}

func (c *countingStore) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	c.loads.Add(1)
	return c.Store.ListSubscriptions(ctx)
}

func newStatsFixture(t *testing.T) (*StatsService, *countingStore) {
	t.Helper()
	store := &countingStore{Store: memory.New()}
	seed(t, store.Store,
		monthly(1, "A", 10000, core.NewDate(2024, 1, 15)),
		yearly(2, "B", 120000, core.NewDate(2023, 6, 1)),
	)
	reports := cache.NewLRUCache[Report](16, time.Hour)
	return NewStatsService(store, reports, DefaultStatsOptions(), discardLogger()), store
}

func TestStatsService_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	svc, store := newStatsFixture(t)
	now := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

	first, err := svc.Report(ctx, now)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, first.TotalMonthly, 1e-9)

	_, err = svc.Report(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.loads.Load())

	_, err = store.CreateSubscription(ctx, monthly(3, "C", 5000, core.NewDate(2024, 6, 1)))
	require.NoError(t, err)
	svc.Invalidate(ctx)

	refreshed, err := svc.Report(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.loads.Load())
	assert.InDelta(t, 250.0, refreshed.TotalMonthly, 1e-9)
}

func TestStatsService_HistoryLengthIsPartOfTheKey(t *testing.T) {
	ctx := context.Background()
	svc, store := newStatsFixture(t)
	day := core.NewDate(2024, 6, 10)

	six, err := svc.ReportFor(ctx, day, 6)
	require.NoError(t, err)
	twelve, err := svc.ReportFor(ctx, day, 12)
	require.NoError(t, err)

	assert.Len(t, six.History, 6)
	assert.Len(t, twelve.History, 12)
	assert.Equal(t, int32(2), store.loads.Load())
}

func TestStatsService_GeneratorInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, store := newStatsFixture(t)
	gen := newGenerator(store.Store)
	gen.OnPaymentsCreated(svc.Invalidate)

	before, err := svc.ReportFor(ctx, core.NewDate(2024, 6, 20), 6)
	require.NoError(t, err)
	assert.Equal(t, 0, before.Payments.Count)

	_, err = gen.Generate(ctx, core.NewDate(2024, 6, 20))
	require.NoError(t, err)

	after, err := svc.ReportFor(ctx, core.NewDate(2024, 6, 20), 6)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Payments.Count)
	assert.Equal(t, 2, after.Payments.AutoGenerated)
}

func TestStatsService_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newStatsFixture(t)
	day := core.NewDate(2024, 6, 10)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := svc.ReportFor(ctx, day, 6)
			assert.NoError(t, err)
			assert.InDelta(t, 200.0, report.TotalMonthly, 1e-9)
		}()
	}
	wg.Wait()
}

func TestStatsService_WithoutCache(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	svc := NewStatsService(store, nil, StatsOptions{}, discardLogger())

	_, err := svc.ReportFor(context.Background(), core.NewDate(2024, 6, 10), 0)
	require.NoError(t, err)
	_, err = svc.ReportFor(context.Background(), core.NewDate(2024, 6, 10), 0)
	require.NoError(t, err)
	svc.Invalidate(context.Background())

	assert.Equal(t, int32(2), store.loads.Load())
	assert.Equal(t, DefaultHistoryMonths, svc.Options().HistoryMonths)
}

// gatedStore blocks the subscription load until released and then honours the
// caller's context the way a database driver would.
type gatedStore struct {
	*countingStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	close(g.entered)
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.countingStore.ListSubscriptions(ctx)
}

func TestStatsService_SharedComputationSurvivesCallerCancellation(t *testing.T) {
	_, counting := newStatsFixture(t)
	store := &gatedStore{countingStore: counting, entered: make(chan struct{}), release: make(chan struct{})}
	reports := cache.NewLRUCache[Report](16, time.Hour)
	svc := NewStatsService(store, reports, DefaultStatsOptions(), discardLogger())
	day := core.NewDate(2024, 6, 10)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		report Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := svc.ReportFor(ctx, day, 6)
		done <- result{report, err}
	}()

	<-store.entered
	cancel()
	close(store.release)

	first := <-done
	require.NoError(t, first.err)
	assert.InDelta(t, 200.0, first.report.TotalMonthly, 1e-9)

	// the computation was cached for later callers
	second, err := svc.ReportFor(context.Background(), day, 6)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, second.TotalMonthly, 1e-9)
	assert.Equal(t, int32(1), counting.loads.Load())
}
