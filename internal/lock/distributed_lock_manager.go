package lock

import (
	"context"
	"time"
)

const (
	DefaultLeaseDuration = 5 * time.Minute
	DefaultMaxRetries    = 3
	DefaultBaseDelay     = 100 * time.Millisecond
)

// DistributedLockManager grants the right to run one firing of a job across
// every instance sharing the store.
type DistributedLockManager interface {
	// Acquire reports whether the caller now holds the job's lease. It never
	// returns an error: contention, store failures and cancellation all mean
	// the firing is skipped.
	Acquire(ctx context.Context, jobID string, leaseDuration time.Duration) bool

	// Release clears the job's lease.
	Release(ctx context.Context, jobID string)

	// ReleaseAll clears every lease. Called at shutdown.
	ReleaseAll(ctx context.Context)
}
