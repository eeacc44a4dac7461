package lifecycle_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/botio91514/gym-backend/internal/domain/lifecycle"
	"github.com/botio91514/gym-backend/internal/repository/inmemory"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signalRunner struct {
	calls atomic.Int32
	ran   chan struct{}
	err   error
}

func newSignalRunner() *signalRunner {
	return &signalRunner{ran: make(chan struct{}, 16)}
}

func (r *signalRunner) RunPass(context.Context) (lifecycle.PassReport, error) {
	r.calls.Add(1)
	r.ran <- struct{}{}
	return lifecycle.PassReport{}, r.err
}

func (r *signalRunner) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not run")
	}
}

type schedulerHarness struct {
	runner *signalRunner
	runs   *inmemory.RunStore
	clock  *clockwork.FakeClock
	cancel context.CancelFunc
	done   chan struct{}
}

func startScheduler(t *testing.T, runs *inmemory.RunStore, start time.Time) *schedulerHarness {
	t.Helper()
	h := &schedulerHarness{
		runner: newSignalRunner(),
		runs:   runs,
		clock:  clockwork.NewFakeClockAt(start),
		done:   make(chan struct{}),
	}
	s := lifecycle.NewScheduler(h.runner, runs, h.clock, logger.Nop(), lifecycle.SchedulerOptions{Location: time.UTC})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		s.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *schedulerHarness) stop() {
	h.cancel()
	<-h.done
}

// advanceTo moves the clock to just before at, checks no pass ran, then
// crosses at.
func (h *schedulerHarness) advanceTo(t *testing.T, at time.Time) {
	t.Helper()
	h.awaitTimer(t)
	calls := h.runner.calls.Load()
	h.clock.Advance(at.Add(-time.Second).Sub(h.clock.Now()))
	require.Equal(t, calls, h.runner.calls.Load(), "pass ran before %s", at)
	h.clock.Advance(time.Second)
}

func (h *schedulerHarness) awaitTimer(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
}

func TestSchedulerFirstBootWaitsForMidnight(t *testing.T) {
	runs := inmemory.NewRunStore()
	h := startScheduler(t, runs, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC))

	midnight := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	h.advanceTo(t, midnight)
	h.runner.wait(t)

	h.awaitTimer(t)
	last, ok, err := runs.LastSuccess(context.Background(), lifecycle.DefaultJob)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, midnight, last)

	h.advanceTo(t, midnight.AddDate(0, 0, 1))
	h.runner.wait(t)
	assert.EqualValues(t, 2, h.runner.calls.Load())
}

func TestSchedulerCatchesUpMissedRun(t *testing.T) {
	runs := inmemory.NewRunStore()
	require.NoError(t, runs.RecordSuccess(context.Background(), lifecycle.DefaultJob,
		time.Date(2025, 6, 8, 0, 0, 1, 0, time.UTC)))

	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	h := startScheduler(t, runs, start)
	h.runner.wait(t)

	h.awaitTimer(t)
	assert.EqualValues(t, 1, h.runner.calls.Load())
	last, _, err := runs.LastSuccess(context.Background(), lifecycle.DefaultJob)
	require.NoError(t, err)
	assert.Equal(t, start, last)

	h.advanceTo(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC))
	h.runner.wait(t)
}

func TestSchedulerRestartAfterCompletedRunDoesNotRepeat(t *testing.T) {
	runs := inmemory.NewRunStore()
	require.NoError(t, runs.RecordSuccess(context.Background(), lifecycle.DefaultJob,
		time.Date(2025, 6, 10, 0, 0, 2, 0, time.UTC)))

	h := startScheduler(t, runs, time.Date(2025, 6, 10, 0, 5, 0, 0, time.UTC))

	h.advanceTo(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC))
	h.runner.wait(t)
	assert.EqualValues(t, 1, h.runner.calls.Load())
}

func TestSchedulerSkipsSlotsAfterLongPause(t *testing.T) {
	runs := inmemory.NewRunStore()
	h := startScheduler(t, runs, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC))
	h.awaitTimer(t)

	// The process was suspended for three days.
	h.clock.Advance(2*24*time.Hour + 18*time.Hour)
	h.runner.wait(t)
	h.runner.wait(t)

	h.advanceTo(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	h.runner.wait(t)
	assert.EqualValues(t, 3, h.runner.calls.Load())
}

func TestRunOnceDoesNotRecordFailedPass(t *testing.T) {
	runs := inmemory.NewRunStore()
	runner := newSignalRunner()
	runner.err = errors.New("database unavailable")
	fake := clockwork.NewFakeClockAt(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	s := lifecycle.NewScheduler(runner, runs, fake, logger.Nop(), lifecycle.SchedulerOptions{Location: time.UTC})

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)

	_, ok, err := runs.LastSuccess(context.Background(), lifecycle.DefaultJob)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	runs := inmemory.NewRunStore()
	h := startScheduler(t, runs, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC))
	h.awaitTimer(t)

	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, h.runner.calls.Load())
}
