package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/havenloop/haven/internal/scheduler"
	"github.com/havenloop/haven/internal/testutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Timers
// ─────────────────────────────────────────────────────────────────────────────

func TestTimers_FiresAfterDelay(t *testing.T) {
	t.Parallel()

	timers := scheduler.NewTimers(testutil.NewMockLogger())
	fired := make(chan struct{})
	timers.Schedule("inc-1", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	// The fired timer removed itself from the registry.
	assert.Eventually(t, func() bool {
		return timers.Pending("inc-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTimers_CancelIncidentStopsAllTimers(t *testing.T) {
	t.Parallel()

	timers := scheduler.NewTimers(testutil.NewMockLogger())
	var fired atomic.Int32
	timers.Schedule("inc-1", 30*time.Millisecond, func() { fired.Add(1) })
	timers.Schedule("inc-1", 40*time.Millisecond, func() { fired.Add(1) })
	assert.Equal(t, 2, timers.Pending("inc-1"))

	timers.CancelIncident("inc-1")
	assert.Equal(t, 0, timers.Pending("inc-1"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestTimers_CancelLeavesOtherIncidentsAlone(t *testing.T) {
	t.Parallel()

	timers := scheduler.NewTimers(testutil.NewMockLogger())
	fired := make(chan struct{})
	timers.Schedule("inc-1", time.Hour, func() {})
	timers.Schedule("inc-2", 10*time.Millisecond, func() { close(fired) })

	timers.CancelIncident("inc-1")

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("unrelated timer was canceled")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Loop
// ─────────────────────────────────────────────────────────────────────────────

func TestLoop_RunsUntilCanceled(t *testing.T) {
	t.Parallel()

	var passes atomic.Int32
	loop := scheduler.NewLoop("sweep", 10*time.Millisecond, func(context.Context) error {
		passes.Add(1)
		return nil
	}, testutil.NewMockLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, passes.Load(), int32(3))
}

func TestLoop_KeepsGoingAfterErrors(t *testing.T) {
	t.Parallel()

	var passes atomic.Int32
	loop := scheduler.NewLoop("sweep", 10*time.Millisecond, func(context.Context) error {
		passes.Add(1)
		return assert.AnError
	}, testutil.NewMockLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = loop.Run(ctx)
	assert.GreaterOrEqual(t, passes.Load(), int32(2))
}
