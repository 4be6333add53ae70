package mocks

import (
	"context"
	"time"
)

// MockLeaseStore is a mock implementation of store.LeaseStore for testing.
type MockLeaseStore struct {
	TryAcquireLeaseFunc func(ctx context.Context, jobID string, now, until time.Time) (bool, error)
	ClearLeaseFunc      func(ctx context.Context, jobID string) error
	ClearAllLeasesFunc  func(ctx context.Context) error
}

func (m *MockLeaseStore) TryAcquireLease(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
	if m.TryAcquireLeaseFunc != nil {
		return m.TryAcquireLeaseFunc(ctx, jobID, now, until)
	}
	return true, nil
}

func (m *MockLeaseStore) ClearLease(ctx context.Context, jobID string) error {
	if m.ClearLeaseFunc != nil {
		return m.ClearLeaseFunc(ctx, jobID)
	}
	return nil
}

func (m *MockLeaseStore) ClearAllLeases(ctx context.Context) error {
	if m.ClearAllLeasesFunc != nil {
		return m.ClearAllLeasesFunc(ctx)
	}
	return nil
}
