// Package ledger records the lifecycle of every firing as a run. A run moves
// pending -> running -> success|failed and is never changed once terminal.
package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

var ErrInvalidTransition = errors.New("invalid run status transition")

type Ledger struct {
	runs store.RunStore
	now  func() time.Time
}

func New(runs store.RunStore) *Ledger {
	return &Ledger{
		runs: runs,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Open creates the pending run of a firing due at scheduledFor.
func (l *Ledger) Open(ctx context.Context, jobID string, scheduledFor time.Time) (*types.Run, error) {
	run := &types.Run{
		JobID:        jobID,
		ScheduledFor: scheduledFor.UTC(),
		Status:       state.StatusPending,
	}
	if err := l.runs.CreateRun(ctx, run); err != nil {
		return nil, errors.Wrapf(err, "failed to open run for job %s", jobID)
	}
	return run, nil
}

func (l *Ledger) MarkRunning(ctx context.Context, run *types.Run) error {
	return l.transition(ctx, run, state.StatusRunning, func(r *types.Run) {})
}

// MarkSucceeded records the response of the dispatched request.
func (l *Ledger) MarkSucceeded(ctx context.Context, run *types.Run, statusCode int, body string) error {
	return l.transition(ctx, run, state.StatusSuccess, func(r *types.Run) {
		executed := l.now()
		r.ExecutedAt = &executed
		r.ResponseStatus = &statusCode
		r.ResponseBody = body
	})
}

// MarkFailed records cause's message as the run's response body.
func (l *Ledger) MarkFailed(ctx context.Context, run *types.Run, cause error) error {
	return l.transition(ctx, run, state.StatusFailed, func(r *types.Run) {
		executed := l.now()
		r.ExecutedAt = &executed
		r.ResponseStatus = nil
		if cause != nil {
			r.ResponseBody = cause.Error()
		}
	})
}

// transition applies mutate to a copy of run and stores it guarded by run's
// current status. run is only updated once the store accepted the change.
func (l *Ledger) transition(ctx context.Context, run *types.Run, to state.RunStatus, mutate func(*types.Run)) error {
	from := run.Status
	if !state.IsValidTransition(from, to) {
		return errors.Wrapf(ErrInvalidTransition, "run %s: %s -> %s", run.ID, from, to)
	}

	next := *run
	next.Status = to
	mutate(&next)

	if err := l.runs.UpdateRun(ctx, &next, from); err != nil {
		if errors.Is(err, store.ErrStaleRun) {
			return errors.Wrapf(ErrInvalidTransition, "run %s changed concurrently, expected %s", run.ID, from)
		}
		return errors.Wrapf(err, "failed to mark run %s %s", run.ID, to)
	}
	*run = next
	return nil
}
