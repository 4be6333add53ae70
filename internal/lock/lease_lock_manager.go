package lock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/internal/logger"
	"github.com/RezaEskandarii/cronhook/internal/store"
)

var errLeaseHeld = errors.New("lease held by another instance")

var _ DistributedLockManager = (*LeaseLockManager)(nil)

// LeaseLockManager implements DistributedLockManager on a store.LeaseStore.
// Attempts are spaced baseDelay, 2*baseDelay, 4*baseDelay... apart.
type LeaseLockManager struct {
	leases     store.LeaseStore
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	now        func() time.Time
}

type Option func(*LeaseLockManager)

// WithMaxRetries sets the total number of attempts, including the first one.
func WithMaxRetries(n int) Option {
	return func(m *LeaseLockManager) {
		if n > 0 {
			m.maxRetries = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(m *LeaseLockManager) {
		if d > 0 {
			m.baseDelay = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *LeaseLockManager) {
		m.now = now
	}
}

func NewLeaseLockManager(leases store.LeaseStore, log *zap.Logger, opts ...Option) *LeaseLockManager {
	m := &LeaseLockManager{
		leases:     leases,
		logger:     log.Named("lock"),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *LeaseLockManager) Acquire(ctx context.Context, jobID string, leaseDuration time.Duration) bool {
	if leaseDuration <= 0 {
		leaseDuration = DefaultLeaseDuration
	}
	if ctx.Err() != nil {
		return false
	}

	attempt := 0
	op := func() error {
		attempt++
		now := m.now()
		ok, err := m.leases.TryAcquireLease(ctx, jobID, now, now.Add(leaseDuration))
		if err != nil {
			m.logger.Warn("lease attempt failed",
				zap.String(logger.FieldJobID, jobID),
				zap.Int(logger.FieldAttempt, attempt),
				zap.Error(err),
			)
			return err
		}
		if !ok {
			return errLeaseHeld
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(m.policy(), ctx))
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		m.logger.Info("lease acquisition cancelled",
			zap.String(logger.FieldJobID, jobID),
			zap.Int(logger.FieldAttempt, attempt),
		)
		return false
	}
	m.logger.Info("lease not acquired, skipping firing",
		zap.String(logger.FieldJobID, jobID),
		zap.Int(logger.FieldAttempt, attempt),
	)
	return false
}

func (m *LeaseLockManager) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = m.baseDelay << uint(m.maxRetries)
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(m.maxRetries-1))
}

func (m *LeaseLockManager) Release(ctx context.Context, jobID string) {
	if err := m.leases.ClearLease(ctx, jobID); err != nil {
		m.logger.Warn("failed to release lease",
			zap.String(logger.FieldJobID, jobID),
			zap.Error(err),
		)
	}
}

func (m *LeaseLockManager) ReleaseAll(ctx context.Context) {
	if err := m.leases.ClearAllLeases(ctx); err != nil {
		m.logger.Error("failed to release leases", zap.Error(err))
	}
}
