// Package scheduler keeps the set of live timers, at most one per job, on a
// single cron runner owned by the Registry.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/internal/logger"
	"github.com/RezaEskandarii/cronhook/internal/parser"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

// FireFunc runs one firing of job due at scheduledFor. ctx is cancelled when
// the job's timer is removed.
type FireFunc func(ctx context.Context, job types.Job, scheduledFor time.Time)

// ScheduleError reports a job whose schedule or time zone cannot be used.
type ScheduleError struct {
	JobID    string
	Schedule string
	TimeZone string
	Err      error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("job %s: cannot schedule %q in time zone %q: %v", e.JobID, e.Schedule, e.TimeZone, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}

type entry struct {
	id     cron.EntryID
	cancel context.CancelFunc
}

type Registry struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	fire    FireFunc
	logger  *zap.Logger
	started bool
}

func NewRegistry(fire FireFunc, log *zap.Logger) *Registry {
	log = log.Named("scheduler")
	return &Registry{
		cron:    cron.New(cron.WithLogger(cronLogger{log.Sugar()})),
		entries: make(map[string]*entry),
		fire:    fire,
		logger:  log,
	}
}

// Start begins firing installed timers.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.cron.Start()
}

// Load installs a timer for every enabled job. Jobs that cannot be scheduled
// are logged and skipped.
func (r *Registry) Load(ctx context.Context, jobs store.JobStore) error {
	enabled, err := jobs.ListEnabledJobs(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load enabled jobs")
	}
	for _, job := range enabled {
		if err := r.Install(job); err != nil {
			r.logger.Error("job left unscheduled",
				zap.String(logger.FieldJobID, job.ID),
				zap.String(logger.FieldSchedule, job.Schedule),
				zap.String(logger.FieldTimeZone, job.TimeZone),
				zap.Error(err),
			)
		}
	}
	r.logger.Info("timers loaded", zap.Int(logger.FieldCount, r.Len()))
	return nil
}

// Install replaces the job's timer. A disabled job only loses its timer. When
// the schedule is invalid the old timer stays removed and a *ScheduleError
// is returned.
func (r *Registry) Install(job types.Job) error {
	sched, err := parser.ParseSchedule(job.Schedule, job.TimeZone)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(job.ID)
	if !job.Enabled {
		return nil
	}
	if err != nil {
		return &ScheduleError{JobID: job.ID, Schedule: job.Schedule, TimeZone: job.TimeZone, Err: err}
	}
	r.scheduleLocked(job, sched)
	return nil
}

func (r *Registry) scheduleLocked(job types.Job, sched cron.Schedule) {
	ctx, cancel := context.WithCancel(context.Background())
	due := &dueSchedule{Schedule: sched}
	id := r.cron.Schedule(due, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		r.fire(ctx, job, due.dueAt(time.Now()))
	}))
	r.entries[job.ID] = &entry{id: id, cancel: cancel}

	r.logger.Debug("timer installed",
		zap.String(logger.FieldJobID, job.ID),
		zap.String(logger.FieldSchedule, job.Schedule),
		zap.String(logger.FieldTimeZone, job.TimeZone),
	)
}

// Remove stops the job's timer. Removing an unknown job is a no-op.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(jobID)
}

func (r *Registry) removeLocked(jobID string) {
	e, ok := r.entries[jobID]
	if !ok {
		return
	}
	e.cancel()
	r.cron.Remove(e.id)
	delete(r.entries, jobID)
	r.logger.Debug("timer removed", zap.String(logger.FieldJobID, jobID))
}

// Stop removes every timer and waits for running firings until ctx is done.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	for id := range r.entries {
		r.removeLocked(id)
	}
	done := r.cron.Stop()
	r.started = false
	r.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "firings still running at shutdown")
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) Has(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[jobID]
	return ok
}

// NextRun returns the next activation of an installed job.
func (r *Registry) NextRun(jobID string) (time.Time, bool) {
	r.mu.Lock()
	e, ok := r.entries[jobID]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	ent := r.cron.Entry(e.id)
	if d, ok := ent.Schedule.(*dueSchedule); ok && ent.Next.IsZero() {
		// not started yet
		return d.Schedule.Next(time.Now()), true
	}
	return ent.Next, !ent.Next.IsZero()
}

// dueSchedule remembers the activations the cron runner asked for, so a
// firing reports the slot it was due at rather than the moment it woke up.
type dueSchedule struct {
	cron.Schedule

	mu   sync.Mutex
	prev time.Time
	next time.Time
}

func (d *dueSchedule) Next(t time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prev = d.next
	d.next = d.Schedule.Next(t)
	return d.next
}

// dueAt returns the activation a firing observed at now belongs to. The
// runner may or may not have advanced to the following activation yet.
func (d *dueSchedule) dueAt(now time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case !d.next.IsZero() && !d.next.After(now):
		return d.next
	case !d.prev.IsZero() && !d.prev.After(now):
		return d.prev
	}
	return now.Truncate(time.Minute)
}

// cronLogger routes the cron runner's logs into zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, logger.FieldError, err)...)
}
