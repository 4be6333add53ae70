package mocks

import (
	"context"
	"time"
)

// MockDistributedLockManager is a mock implementation of lock.DistributedLockManager for testing.
type MockDistributedLockManager struct {
	AcquireFunc    func(ctx context.Context, jobID string, leaseDuration time.Duration) bool
	ReleaseFunc    func(ctx context.Context, jobID string)
	ReleaseAllFunc func(ctx context.Context)
}

func (m *MockDistributedLockManager) Acquire(ctx context.Context, jobID string, leaseDuration time.Duration) bool {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, jobID, leaseDuration)
	}
	return true
}

func (m *MockDistributedLockManager) Release(ctx context.Context, jobID string) {
	if m.ReleaseFunc != nil {
		m.ReleaseFunc(ctx, jobID)
	}
}

func (m *MockDistributedLockManager) ReleaseAll(ctx context.Context) {
	if m.ReleaseAllFunc != nil {
		m.ReleaseAllFunc(ctx)
	}
}
