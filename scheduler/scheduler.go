// Package scheduler runs time-triggered jobs at fixed wall-clock hours in a
// fixed civil timezone. Each job is guaranteed at most one concurrent
// execution; a run that overlaps its next trigger causes that trigger to be
// skipped, not queued.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trezcool/darasa/core"
)

type (
	// JobFunc does the work of one trigger. Errors are reported, not retried.
	JobFunc func(ctx context.Context) error

	job struct {
		name    string
		fn      JobFunc
		next    func(after time.Time) time.Time
		running int32 // atomic; 1 while the job is executing
	}

	Scheduler struct {
		loc    *time.Location
		logger core.Logger
		jobs   []*job

		nowFunc func() time.Time // mockable
	}
)

func New(loc *time.Location, logger core.Logger) *Scheduler {
	return &Scheduler{
		loc:     loc,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// AddDaily schedules fn every day at the given hour.
func (s *Scheduler) AddDaily(name string, hour int, fn JobFunc) {
	loc := s.loc
	s.jobs = append(s.jobs, &job{
		name: name,
		fn:   fn,
		next: func(after time.Time) time.Time {
			after = after.In(loc)
			next := time.Date(after.Year(), after.Month(), after.Day(), hour, 0, 0, 0, loc)
			if !next.After(after) {
				next = next.AddDate(0, 0, 1)
			}
			return next
		},
	})
}

// AddMonthly schedules fn every month on the given day at the given hour.
// Days past the end of a month clamp to its last day, so day 31 runs on
// Feb 28 (or 29).
func (s *Scheduler) AddMonthly(name string, day, hour int, fn JobFunc) {
	loc := s.loc
	s.jobs = append(s.jobs, &job{
		name: name,
		fn:   fn,
		next: func(after time.Time) time.Time {
			after = after.In(loc)
			next := monthlyAt(after.Year(), after.Month(), day, hour, loc)
			if !next.After(after) {
				next = monthlyAt(after.Year(), after.Month()+1, day, hour, loc)
			}
			return next
		},
	})
}

func monthlyAt(year int, month time.Month, day, hour int, loc *time.Location) time.Time {
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}

func lastDayOfMonth(year int, month time.Month) int {
	// day 0 of next month normalizes backwards
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Start runs all registered jobs until ctx is canceled. It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		j := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, j)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	for {
		next := j.next(s.nowFunc())
		s.logger.Info("scheduler: " + j.name + " next run at " + next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !atomic.CompareAndSwapInt32(&j.running, 0, 1) {
			s.logger.Warn("scheduler: " + j.name + " still running, skipping trigger")
			continue
		}
		go func() {
			defer atomic.StoreInt32(&j.running, 0)
			start := s.nowFunc()
			if err := j.fn(ctx); err != nil {
				s.logger.Error("scheduler: "+j.name+" failed", err)
				return
			}
			s.logger.Info("scheduler: " + j.name + " completed in " + s.nowFunc().Sub(start).String())
		}()
	}
}
