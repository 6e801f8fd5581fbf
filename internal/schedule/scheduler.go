// Package schedule runs registered jobs on cron expressions. It exists so
// the pipeline refresh cadence is data in the config file, not code.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/etl"
)

// Entry is one scheduled job.
type Entry struct {
	Name string
	Spec string
	Job  func(ctx context.Context) error

	schedule cron.Schedule
	next     time.Time
}

// EntryStatus reports an entry for listings.
type EntryStatus struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
}

// Scheduler drives entries from a single goroutine. Jobs run sequentially;
// an entry firing while its job still runs simply waits its turn, and a
// pipeline trigger rejected by the running-job guard is rearmed, not retried.
type Scheduler struct {
	entries []*Entry
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job under a six-field cron expression (with seconds),
// e.g. "0 0 */6 * * *" for every six hours.
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context) error) error {
	sched, err := cron.Parse(spec)
	if err != nil {
		return eris.Wrapf(err, "schedule: parse spec %q for %s", spec, name)
	}
	s.entries = append(s.entries, &Entry{
		Name:     name,
		Spec:     spec,
		Job:      job,
		schedule: sched,
		next:     sched.Next(time.Now()),
	})
	return nil
}

// Entries reports the registered jobs and their next fire times.
func (s *Scheduler) Entries() []EntryStatus {
	out := make([]EntryStatus, len(s.entries))
	for i, e := range s.entries {
		out[i] = EntryStatus{Name: e.Name, Spec: e.Spec, NextRun: e.next}
	}
	return out
}

// Run blocks, firing entries at their scheduled times until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return eris.New("schedule: no entries registered")
	}

	log := zap.L().With(zap.String("component", "schedule"))
	for _, e := range s.entries {
		log.Info("entry armed", zap.String("entry", e.Name), zap.String("spec", e.Spec), zap.Time("next", e.next))
	}

	for {
		next := s.soonest()
		timer := time.NewTimer(time.Until(next.next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.fire(ctx, next, log)
		next.next = next.schedule.Next(time.Now())
	}
}

func (s *Scheduler) soonest() *Entry {
	next := s.entries[0]
	for _, e := range s.entries[1:] {
		if e.next.Before(next.next) {
			next = e
		}
	}
	return next
}

func (s *Scheduler) fire(ctx context.Context, e *Entry, log *zap.Logger) {
	start := time.Now()
	err := e.Job(ctx)

	var conflict *etl.JobConflictError
	switch {
	case err == nil:
		log.Info("entry completed",
			zap.String("entry", e.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	case errors.As(err, &conflict):
		// Another run is already in flight. The entry fires again at its
		// next scheduled time.
		log.Info("entry skipped, job already running",
			zap.String("entry", e.Name),
			zap.String("running_job", conflict.RunningJobID),
		)
	default:
		log.Error("entry failed",
			zap.String("entry", e.Name),
			zap.Error(err),
		)
	}
}
