package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "courtavail/internal/log"
)

// Scheduler triggers Runner.Run on a cron schedule in the facility zone.
type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	timeout time.Duration
	ctx     context.Context
}

// NewScheduler parses schedule (standard 5-field syntax or a descriptor such as
// "@every 15m"). timeout bounds each run; zero means no bound.
func NewScheduler(schedule string, loc *time.Location, runner *Runner, timeout time.Duration) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		runner:  runner,
		timeout: timeout,
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling. Runs started by the scheduler are cancelled
// when ctx is.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	appLog.Info("refresh scheduler started", "next", s.Next().Format(time.RFC3339))
}

// Stop stops scheduling and waits for a running refresh to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("refresh scheduler stop timed out")
	}
}

// Next returns the next scheduled run time, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	// Errors are logged by Run.
	_, _ = s.runner.Run(ctx)
}
