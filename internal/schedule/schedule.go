// Package schedule runs background jobs on cron expressions. The server
// uses it to trigger periodic recalibration.
package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of scheduled work. Run errors are logged, not fatal;
// the job stays scheduled.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler parses standard 5-field cron expressions
// (minute hour day-of-month month day-of-week) and runs jobs on them.
type Scheduler struct {
	parser cron.Parser
	now    func() time.Time
}

// New creates a Scheduler.
func New() *Scheduler {
	return &Scheduler{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		now:    time.Now,
	}
}

// Start launches job on the given schedule until ctx is cancelled. It
// returns the time of the first run, or an error for an unparsable spec.
func (s *Scheduler) Start(ctx context.Context, spec string, job Job) (time.Time, error) {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	first := sched.Next(s.now())
	go s.loop(ctx, sched, job)
	return first, nil
}

func (s *Scheduler) loop(ctx context.Context, sched cron.Schedule, job Job) {
	for {
		now := s.now()
		timer := time.NewTimer(sched.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := job.Run(ctx); err != nil {
			log.Printf("scheduled %s failed: %v", job.Name, err)
		}
	}
}
