package scheduler

import (
	"context"
	"log/slog"
	"time"

	"vhxdl/internal/logging"
	"vhxdl/internal/services"
)

const component = "scheduler"

// Run triggers.
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
)

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	Watch    bool
	At       TimeOfDay
	Location *time.Location
	Clock    Clock
	Logger   *slog.Logger
}

// Scheduler sequences pipeline runs. Runs never overlap.
type Scheduler struct {
	run    RunFunc
	watch  bool
	at     TimeOfDay
	loc    *time.Location
	clock  Clock
	logger *slog.Logger
}

// New constructs a Scheduler around run.
func New(run RunFunc, opts Options) *Scheduler {
	s := &Scheduler{
		run:    run,
		watch:  opts.Watch,
		at:     opts.At,
		loc:    opts.Location,
		clock:  opts.Clock,
		logger: logging.NewComponentLogger(opts.Logger, component),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	return s
}

// Run executes the startup run. Without watch mode it returns that run's
// error. In watch mode it then waits for each daily trigger and runs again
// until ctx is cancelled, which ends the loop with a nil error; failed runs
// are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	err := s.runOnce(ctx, TriggerStartup)
	if !s.watch {
		return err
	}

	for {
		if ctx.Err() != nil {
			s.logger.Info("watch loop stopped")
			return nil
		}
		now := s.clock.Now()
		next := NextTrigger(now, s.at, s.loc)
		wait := next.Sub(now)
		s.logger.Info("next run scheduled",
			logging.String("at", next.Format(time.RFC3339)),
			logging.Duration("in", wait),
		)

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("watch loop stopped")
			return nil
		case fired := <-timer.C():
			if late := fired.Sub(next); late > time.Minute {
				s.logger.Info("trigger overdue, running now", logging.Duration("late", late))
			}
		}
		_ = s.runOnce(ctx, TriggerSchedule)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) error {
	ctx = services.WithTrigger(ctx, trigger)
	err := s.run(ctx)
	if err != nil && s.watch && ctx.Err() == nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "run failed, waiting for next trigger", "scheduled_run_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "content will be retried at the next trigger"),
		)
	}
	return err
}
