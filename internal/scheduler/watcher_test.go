package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRunsInitialSync(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	w := New("0 * * * *", 0, func(ctx context.Context) error {
		calls.Add(1)
		cancel()
		return nil
	}, nil)

	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcherInvalidSchedule(t *testing.T) {
	w := New("not a schedule", 0, func(ctx context.Context) error { return nil }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, w.Run(ctx))
}

func TestWatcherStartupDelayIsInterruptible(t *testing.T) {
	var calls atomic.Int32
	w := New("0 * * * *", time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}
