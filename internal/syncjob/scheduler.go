package syncjob

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Runner is what a scheduler triggers. Implemented by Job.
type Runner interface {
	Run(ctx context.Context) (*Stats, error)
}

// Scheduler drives a Runner on a timetable. Implementations decide when;
// the runner decides what.
type Scheduler interface {
	// Start blocks, triggering the runner until the context is cancelled.
	Start(ctx context.Context) error
}

// DailyScheduler triggers once per day at a fixed hour in a fixed
// timezone.
type DailyScheduler struct {
	runner Runner
	hour   int
	loc    *time.Location
	now    func() time.Time
}

// DailyOption configures the scheduler.
type DailyOption func(*DailyScheduler)

// WithClock sets a fixed clock for testing.
func WithClock(now func() time.Time) DailyOption {
	return func(s *DailyScheduler) {
		s.now = now
	}
}

// NewDailyScheduler creates a scheduler firing at hour (0-23) in tz.
func NewDailyScheduler(runner Runner, hour int, tz string, opts ...DailyOption) (*DailyScheduler, error) {
	if hour < 0 || hour > 23 {
		return nil, eris.Errorf("syncjob: invalid schedule hour %d", hour)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, eris.Wrapf(err, "syncjob: load timezone %s", tz)
	}
	s := &DailyScheduler{
		runner: runner,
		hour:   hour,
		loc:    loc,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// nextRun returns the next firing instant strictly after now.
func (s *DailyScheduler) nextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, 0, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start blocks until ctx is cancelled, firing the runner once per day. A
// failed run is logged and the schedule keeps going.
func (s *DailyScheduler) Start(ctx context.Context) error {
	for {
		next := s.nextRun(s.now())
		wait := next.Sub(s.now())
		zap.L().Info("sync scheduled",
			zap.Time("next_run", next),
			zap.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := s.runner.Run(ctx); err != nil {
			zap.L().Error("scheduled sync run failed", zap.Error(err))
		}
	}
}
