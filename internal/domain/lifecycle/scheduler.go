package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/jonboulle/clockwork"
)

const DefaultJob = "membership-lifecycle"

type PassRunner interface {
	RunPass(ctx context.Context) (PassReport, error)
}

type SchedulerOptions struct {
	Job      string
	Location *time.Location
}

// Scheduler runs a pass at every local midnight. The last successful pass is
// persisted so a restart after a missed midnight catches up once, and a restart
// after a completed pass does not repeat it.
//
// Only one Scheduler may run against a given database; replicas must disable it.
type Scheduler struct {
	runner PassRunner
	runs   RunStore
	clock  clockwork.Clock
	log    logger.Logger
	job    string
	loc    *time.Location

	mu sync.Mutex
}

func NewScheduler(runner PassRunner, runs RunStore, clk clockwork.Clock, log logger.Logger, opts SchedulerOptions) *Scheduler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if opts.Job == "" {
		opts.Job = DefaultJob
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Scheduler{
		runner: runner,
		runs:   runs,
		clock:  clk,
		log:    log.With("job", opts.Job),
		job:    opts.Job,
		loc:    opts.Location,
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	now := s.clock.Now().In(s.loc)
	today := startOfDay(now)

	last, ok, err := s.runs.LastSuccess(ctx, s.job)
	switch {
	case err != nil:
		s.log.InternalError("scheduler: read last run failed", err)
	case ok && last.Before(today):
		s.log.Info("scheduler: missed run detected, catching up", "last_success", last)
		s.runSlot(ctx, today)
	}

	slot := today.AddDate(0, 0, 1)
	s.log.Info("scheduler: started", "next_run", slot)

	for {
		wait := slot.Sub(s.clock.Now())
		select {
		case <-ctx.Done():
			s.log.Info("scheduler: stopped")
			return
		case <-s.clock.After(wait):
		}

		s.runSlot(ctx, slot)

		slot = slot.AddDate(0, 0, 1)
		if latest := startOfDay(s.clock.Now().In(s.loc)); slot.Before(latest) {
			s.log.Warn("scheduler: pass overran, skipping to latest slot", "slot", latest)
			slot = latest
		}
	}
}

func (s *Scheduler) runSlot(ctx context.Context, slot time.Time) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.log.InternalError("scheduler: pass failed", err, "slot", slot)
		return
	}
	s.log.Info("scheduler: pass finished",
		"slot", slot,
		"expired", report.Expired,
		"reminded", report.Reminded,
		"skipped", report.Skipped,
		"conflicts", report.Conflicts,
		"failures", report.Failures,
		"notify_failures", report.NotifyFailures,
	)
}

// RunOnce runs a single pass now and records it when it succeeds. Concurrent
// calls are serialised.
func (s *Scheduler) RunOnce(ctx context.Context) (PassReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.runner.RunPass(ctx)
	if err != nil {
		return report, err
	}
	if err := s.runs.RecordSuccess(ctx, s.job, s.clock.Now()); err != nil {
		s.log.InternalError("scheduler: record run failed", err)
	}
	return report, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
