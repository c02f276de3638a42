package distributor

import (
	"context"
	"log/slog"
	"time"

	"solstice/core/epoch"
)

// Runner is the weekly job a Scheduler drives. Both the distributor and the
// referral calculator satisfy it.
type Runner interface {
	// RunWeek settles one week. It reports false when the week's upstream
	// data is not available yet and the week should be retried on a later
	// fire before any following week is attempted.
	RunWeek(ctx context.Context, week int64) (bool, error)
	// LastSettledWeek reports the most recent week with persisted output,
	// false when nothing has been settled yet.
	LastSettledWeek(ctx context.Context) (int64, bool, error)
}

// SchedulerConfig configures the weekly settlement scheduler.
type SchedulerConfig struct {
	Runner Runner
	Clock  epoch.Clock
	// Offset delays the run past the week boundary so upstream publishers
	// have time to finalize their data.
	Offset time.Duration
	// Lag shifts the settled week behind the week containing the fire
	// instant. A job whose inputs are only final once a week closes runs
	// with Lag 1 so each fire settles the week that just ended.
	Lag    int64
	Logger *slog.Logger
	Now    func() time.Time
}

// Scheduler fires a Runner once per protocol week, shortly after the week
// boundary. Each fire first replays any unsettled weeks between the runner's
// last persisted week and the target, so a week skipped for missing upstream
// data or lost to downtime is settled as soon as it becomes settleable.
type Scheduler struct {
	runner Runner
	clock  epoch.Clock
	offset time.Duration
	lag    int64
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler constructs a scheduler with sane defaults.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	offset := cfg.Offset
	if offset < 0 {
		offset = 0
	}
	lag := cfg.Lag
	if lag < 0 {
		lag = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		runner: cfg.Runner,
		clock:  cfg.Clock,
		offset: offset,
		lag:    lag,
		logger: logger,
		now:    now,
	}
}

// Start begins the scheduling loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	for {
		now := s.now()
		next := s.nextRun(now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// fire settles every week from just past the runner's last persisted week up
// to the target, in ascending order. The walk stops at the first week that
// is not settleable yet so weeks never settle out of order; the next fire
// resumes from the same place.
func (s *Scheduler) fire(ctx context.Context) {
	target := s.clock.WeekAt(s.now().Unix()) - s.lag
	if target < 0 {
		return
	}
	from := target
	if last, ok, err := s.runner.LastSettledWeek(ctx); err != nil {
		s.logger.Error("last settled week lookup failed", "err", err)
	} else if ok && last+1 < from {
		from = last + 1
	}
	for week := from; week <= target; week++ {
		advanced, err := s.runner.RunWeek(ctx, week)
		if err != nil {
			s.logger.Error("scheduled weekly run failed", "week", week, "err", err)
			return
		}
		if !advanced {
			s.logger.Info("week not settleable yet, will retry", "week", week)
			return
		}
	}
}

// nextRun picks the first week-start-plus-offset strictly after the supplied
// time. A restart shortly after the boundary but before the offset still
// catches the current week.
func (s *Scheduler) nextRun(after time.Time) time.Time {
	week := s.clock.WeekAt(after.Unix())
	start, _ := s.clock.Bounds(week)
	target := time.Unix(start, 0).Add(s.offset)
	if !target.After(after) {
		start, _ = s.clock.Bounds(week + 1)
		target = time.Unix(start, 0).Add(s.offset)
	}
	return target
}
