package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewScheduler_Validation(t *testing.T) {
	noop := func(context.Context, time.Time) error { return nil }

	tests := []struct {
		name     string
		interval time.Duration
		job      Job
		wantErr  bool
	}{
		{"valid", time.Second, noop, false},
		{"zero interval", 0, noop, true},
		{"negative interval", -time.Second, noop, true},
		{"missing job", time.Second, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduler("test", tt.interval, tt.job, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewScheduler("count", 10*time.Millisecond, func(context.Context, time.Time) error {
		if runs.Add(1) == 3 {
			cancel()
		}
		return nil
	}, discardLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestScheduler_FailuresDoNotStopTheLoop(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewScheduler("flaky", 5*time.Millisecond, func(context.Context, time.Time) error {
		if runs.Add(1) >= 2 {
			cancel()
		}
		return errors.New("store unavailable")
	}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestScheduler_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var runs atomic.Int32
	s, err := NewScheduler("idle", time.Hour, func(context.Context, time.Time) error {
		runs.Add(1)
		return nil
	}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, s.Run(ctx))
	assert.Zero(t, runs.Load())
}
