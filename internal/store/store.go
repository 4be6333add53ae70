package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/types"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrRunNotFound = errors.New("run not found")
	// ErrStaleRun is returned by UpdateRun when the stored status no longer
	// matches the status the caller expected to transition from.
	ErrStaleRun = errors.New("run status changed concurrently")
)

// JobStore defines the persistence of job definitions.
type JobStore interface {
	// CreateJob inserts job. ID, CreatedAt and UpdatedAt are filled in by the store when empty.
	CreateJob(ctx context.Context, job *types.Job) error

	GetJob(ctx context.Context, jobID string) (*types.Job, error)

	// UpdateJob overwrites every user-editable field. The lease is left untouched.
	UpdateJob(ctx context.Context, job *types.Job) error

	DeleteJob(ctx context.Context, jobID string) error

	ListJobs(ctx context.Context, page, pageSize int) (*types.PaginationResult[types.Job], error)

	// ListEnabledJobs returns every enabled job, used to rebuild timers at startup.
	ListEnabledJobs(ctx context.Context) ([]types.Job, error)
}

// RunStore defines the persistence of run records.
type RunStore interface {
	CreateRun(ctx context.Context, run *types.Run) error

	// UpdateRun persists run only if the stored status still equals expected.
	// It returns ErrStaleRun otherwise.
	UpdateRun(ctx context.Context, run *types.Run, expected state.RunStatus) error

	GetRun(ctx context.Context, runID string) (*types.Run, error)

	// ListRuns returns the runs of a job, newest first.
	ListRuns(ctx context.Context, jobID string, page, pageSize int) (*types.PaginationResult[types.Run], error)
}

// LeaseStore provides the atomic primitives on a job's lease field.
type LeaseStore interface {
	// TryAcquireLease sets the lease of jobID to until in a single conditional
	// update guarded by "lease absent, null or earlier than now". It returns false
	// when the guard does not hold or the job does not exist.
	TryAcquireLease(ctx context.Context, jobID string, now, until time.Time) (bool, error)

	// ClearLease removes the lease of jobID whatever its value.
	ClearLease(ctx context.Context, jobID string) error

	// ClearAllLeases removes the lease of every job.
	ClearAllLeases(ctx context.Context) error
}

// Store is a backend holding jobs, runs and leases together.
type Store interface {
	JobStore
	RunStore
	LeaseStore

	// Close closes the underlying connection
	Close() error
}

const MaxPageSize = 100
