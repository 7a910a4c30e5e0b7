package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/logging"
	"FeedDigest/internal/ports"
)

// Runner executes one pass of the pipeline.
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) (domain.RunRecord, error)
}

// ScheduleState is the daemon's only cross-run state.
type ScheduleState struct {
	Next time.Time
}

// Advance moves the state past a trigger that fired and was noticed at
// woke. When the process slept through several slots they collapse into
// the run about to start.
func (s ScheduleState) Advance(trigger ports.Trigger, woke time.Time) ScheduleState {
	next := trigger.Next(s.Next)
	if !next.After(woke) {
		next = trigger.Next(woke)
	}
	return ScheduleState{Next: next}
}

// Clock abstracts time for the daemon loop.
type Clock struct {
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// SystemClock reads the wall clock.
func SystemClock() Clock {
	return Clock{Now: time.Now, After: time.After}
}

// SchedulerOptions configure the daemon loop.
type SchedulerOptions struct {
	RunOnStart bool
	Clock      Clock
	Logger     *slog.Logger
}

// Scheduler drives a Runner from a daily trigger.
type Scheduler struct {
	runner     Runner
	trigger    ports.Trigger
	runOnStart bool
	clock      Clock
	logger     *slog.Logger
}

// NewScheduler returns the daemon loop.
func NewScheduler(runner Runner, trigger ports.Trigger, opts SchedulerOptions) *Scheduler {
	clock := opts.Clock
	if clock.Now == nil || clock.After == nil {
		clock = SystemClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		runner:     runner,
		trigger:    trigger,
		runOnStart: opts.RunOnStart,
		clock:      clock,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled. Each run happens strictly after the
// previous one finished; a run that overruns the next slot is followed
// immediately by exactly one more run. Failed runs are logged and the loop
// continues.
func (s *Scheduler) Run(ctx context.Context) error {
	start := s.clock.Now()
	if s.runOnStart {
		s.execute(ctx, start)
	}

	state := ScheduleState{Next: s.trigger.Next(start)}
	for {
		now := s.clock.Now()
		s.logger.Info("next run scheduled",
			"at", state.Next.Format(time.RFC3339),
			"in", humanize.RelTime(now, state.Next, "ago", "from now"),
		)

		if err := s.wait(ctx, state.Next); err != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}

		woke := s.clock.Now()
		state = state.Advance(s.trigger, woke)
		s.execute(ctx, woke)
	}
}

func (s *Scheduler) wait(ctx context.Context, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := until.Sub(s.clock.Now())
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

func (s *Scheduler) execute(ctx context.Context, now time.Time) {
	record, err := s.runner.RunOnce(ctx, now)
	if err != nil {
		s.logger.Error("scheduled run failed", "run_id", record.RunID, "error", err)
		return
	}
	s.logger.Info("scheduled run complete", "run_id", record.RunID, "outcome", record.DeliveryOutcome)
}
