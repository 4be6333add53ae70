// Package runner executes one firing of a job:
//
//	lock -> open pending run -> running -> dispatch -> success|failed -> release
//
// A firing that cannot take the job's lease is skipped without a run.
package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/RezaEskandarii/cronhook/internal/constants"
	"github.com/RezaEskandarii/cronhook/internal/dispatch"
	"github.com/RezaEskandarii/cronhook/internal/ledger"
	"github.com/RezaEskandarii/cronhook/internal/lock"
	"github.com/RezaEskandarii/cronhook/internal/logger"
	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/types"
)

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	// OutcomeAborted means the run could not be recorded.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	}
	return "unknown"
}

type Dispatcher interface {
	Send(ctx context.Context, method, uri string, body any, timeout time.Duration) (*dispatch.Response, error)
}

// RunListener is told about every run that reached a terminal status.
type RunListener interface {
	RunFinished(job *types.Job, run *types.Run)
}

type Runner struct {
	locks         lock.DistributedLockManager
	ledger        *ledger.Ledger
	dispatcher    Dispatcher
	listener      RunListener
	sem           *semaphore.Weighted
	leaseDuration time.Duration
	timeout       time.Duration
	logger        *zap.Logger
}

type Option func(*Runner)

func WithLeaseDuration(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.leaseDuration = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxConcurrent bounds the firings executing at once in this process.
func WithMaxConcurrent(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithListener(l RunListener) Option {
	return func(r *Runner) {
		r.listener = l
	}
}

func New(locks lock.DistributedLockManager, l *ledger.Ledger, d Dispatcher, log *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		locks:         locks,
		ledger:        l,
		dispatcher:    d,
		sem:           semaphore.NewWeighted(constants.DefaultMaxConcurrent),
		leaseDuration: lock.DefaultLeaseDuration,
		timeout:       dispatch.DefaultTimeout,
		logger:        log.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fire runs one firing of job due at scheduledFor. Cancelling ctx abandons
// lock acquisition only: once the lease is held the request and the run
// updates complete.
func (r *Runner) Fire(ctx context.Context, job types.Job, scheduledFor time.Time) (outcome Outcome) {
	log := r.logger.With(
		zap.String(logger.FieldJobID, job.ID),
		zap.Time(logger.FieldScheduledFor, scheduledFor),
	)
	defer func() {
		if p := recover(); p != nil {
			log.Error("firing panicked before the run started", zap.Any("panic", p), zap.Stack("stack"))
			outcome = OutcomeAborted
		}
	}()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		log.Info("firing cancelled while waiting for a slot")
		return OutcomeSkipped
	}
	defer r.sem.Release(1)

	if !r.locks.Acquire(ctx, job.ID, r.leaseDuration) {
		log.Info("job is already running on another instance, skipping")
		return OutcomeSkipped
	}
	work := context.WithoutCancel(ctx)
	defer r.locks.Release(work, job.ID)

	return r.execute(work, job, scheduledFor, log)
}

// execute runs the firing while the lease is held. A panic fails the open run
// before the lease is released.
func (r *Runner) execute(ctx context.Context, job types.Job, scheduledFor time.Time, log *zap.Logger) (outcome Outcome) {
	var run *types.Run
	defer func() {
		if p := recover(); p != nil {
			log.Error("firing panicked", zap.Any("panic", p), zap.Stack("stack"))
			r.failAbandoned(ctx, run, errors.Newf("panic: %v", p), log)
			outcome = OutcomeAborted
		}
	}()

	var err error
	run, err = r.ledger.Open(ctx, job.ID, scheduledFor)
	if err != nil {
		log.Error("failed to open run", zap.Error(err))
		return OutcomeAborted
	}
	log = log.With(zap.String(logger.FieldRunID, run.ID))

	if err := r.ledger.MarkRunning(ctx, run); err != nil {
		log.Error("failed to mark run running", zap.Error(err))
		return OutcomeAborted
	}

	start := time.Now()
	resp, err := r.dispatch(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("dispatch failed",
			zap.String(logger.FieldMethod, job.Method),
			zap.String(logger.FieldURI, job.URI),
			zap.Int64(logger.FieldDurationMS, elapsed.Milliseconds()),
			zap.Error(err),
		)
		if err := r.ledger.MarkFailed(ctx, run, err); err != nil {
			log.Error("failed to mark run failed", zap.Error(err))
			return OutcomeAborted
		}
		r.notify(&job, run)
		return OutcomeFailed
	}

	log.Info("dispatched",
		zap.String(logger.FieldMethod, job.Method),
		zap.String(logger.FieldURI, job.URI),
		zap.Int(logger.FieldStatusCode, resp.StatusCode),
		zap.Int64(logger.FieldDurationMS, elapsed.Milliseconds()),
	)
	if err := r.ledger.MarkSucceeded(ctx, run, resp.StatusCode, resp.Body); err != nil {
		log.Error("failed to mark run succeeded", zap.Error(err))
		return OutcomeAborted
	}
	r.notify(&job, run)
	return OutcomeSucceeded
}

// failAbandoned moves a run left pending or running to failed. A pending run
// passes through running so its history stays a valid sequence.
func (r *Runner) failAbandoned(ctx context.Context, run *types.Run, cause error, log *zap.Logger) {
	if run == nil || run.Status.IsTerminal() {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("failed to record abandoned run", zap.Any("panic", p))
		}
	}()
	if run.Status == state.StatusPending {
		if err := r.ledger.MarkRunning(ctx, run); err != nil {
			log.Error("failed to record abandoned run", zap.String(logger.FieldRunID, run.ID), zap.Error(err))
			return
		}
	}
	if err := r.ledger.MarkFailed(ctx, run, cause); err != nil {
		log.Error("failed to record abandoned run", zap.String(logger.FieldRunID, run.ID), zap.Error(err))
	}
}

func (r *Runner) dispatch(ctx context.Context, job types.Job) (*dispatch.Response, error) {
	var body any
	if job.Body != "" {
		if !json.Valid([]byte(job.Body)) {
			return nil, errors.Newf("invalid JSON body for job %s", job.ID)
		}
		body = json.RawMessage(job.Body)
	}
	return r.dispatcher.Send(ctx, job.Method, job.URI, body, r.timeout)
}

func (r *Runner) notify(job *types.Job, run *types.Run) {
	if r.listener != nil {
		r.listener.RunFinished(job, run)
	}
}
