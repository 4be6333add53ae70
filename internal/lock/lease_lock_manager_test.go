package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/internal/store/memory"
	"github.com/RezaEskandarii/cronhook/internal/test/mocks"
	"github.com/RezaEskandarii/cronhook/types"
)

func TestLeaseLockManager_AcquireFirstAttempt(t *testing.T) {
	var calls int32
	leases := &mocks.MockLeaseStore{
		TryAcquireLeaseFunc: func(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, "job-1", jobID)
			assert.Equal(t, 5*time.Minute, until.Sub(now))
			return true, nil
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop())

	assert.True(t, m.Acquire(context.Background(), "job-1", 0))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLeaseLockManager_ContentionExhaustsRetries(t *testing.T) {
	var stamps []time.Time
	leases := &mocks.MockLeaseStore{
		TryAcquireLeaseFunc: func(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
			stamps = append(stamps, time.Now())
			return false, nil
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop(), WithBaseDelay(20*time.Millisecond))

	assert.False(t, m.Acquire(context.Background(), "job-1", time.Minute))
	require.Len(t, stamps, DefaultMaxRetries)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 40*time.Millisecond)
}

func TestLeaseLockManager_SucceedsOnRetry(t *testing.T) {
	calls := 0
	leases := &mocks.MockLeaseStore{
		TryAcquireLeaseFunc: func(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
			calls++
			return calls == 3, nil
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop(), WithBaseDelay(time.Millisecond))

	assert.True(t, m.Acquire(context.Background(), "job-1", time.Minute))
	assert.Equal(t, 3, calls)
}

func TestLeaseLockManager_StoreErrorCountsAsFailedAttempt(t *testing.T) {
	calls := 0
	leases := &mocks.MockLeaseStore{
		TryAcquireLeaseFunc: func(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
			calls++
			if calls == 1 {
				return false, assert.AnError
			}
			return true, nil
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop(), WithBaseDelay(time.Millisecond))

	assert.True(t, m.Acquire(context.Background(), "job-1", time.Minute))
	assert.Equal(t, 2, calls)
}

func TestLeaseLockManager_MaxRetriesOption(t *testing.T) {
	calls := 0
	leases := &mocks.MockLeaseStore{
		TryAcquireLeaseFunc: func(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
			calls++
			return false, nil
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop(), WithMaxRetries(1), WithBaseDelay(time.Millisecond))

	assert.False(t, m.Acquire(context.Background(), "job-1", time.Minute))
	assert.Equal(t, 1, calls)
}

func TestLeaseLockManager_CancelDuringBackoff(t *testing.T) {
	calls := 0
	leases := &mocks.MockLeaseStore{
		TryAcquireLeaseFunc: func(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
			calls++
			return false, nil
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop(), WithBaseDelay(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	assert.False(t, m.Acquire(ctx, "job-1", time.Minute))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestLeaseLockManager_CancelledBeforeStart(t *testing.T) {
	leases := &mocks.MockLeaseStore{
		TryAcquireLeaseFunc: func(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
			t.Fatal("store must not be called")
			return false, nil
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, m.Acquire(ctx, "job-1", time.Minute))
}

func TestLeaseLockManager_ReleaseSwallowsErrors(t *testing.T) {
	var released, releasedAll bool
	leases := &mocks.MockLeaseStore{
		ClearLeaseFunc: func(ctx context.Context, jobID string) error {
			released = true
			return assert.AnError
		},
		ClearAllLeasesFunc: func(ctx context.Context) error {
			releasedAll = true
			return assert.AnError
		},
	}
	m := NewLeaseLockManager(leases, zap.NewNop())

	assert.NotPanics(t, func() {
		m.Release(context.Background(), "job-1")
		m.ReleaseAll(context.Background())
	})
	assert.True(t, released)
	assert.True(t, releasedAll)
}

func newSharedJob(t *testing.T, s *memory.Store) string {
	t.Helper()
	job := &types.Job{URI: "http://x/ok", Method: "GET", Schedule: "* * * * *", TimeZone: "UTC", Enabled: true}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job.ID
}

func TestLeaseLockManager_MutualExclusion(t *testing.T) {
	s := memory.New()
	jobID := newSharedJob(t, s)
	ctx := context.Background()

	a := NewLeaseLockManager(s, zap.NewNop(), WithMaxRetries(1))
	b := NewLeaseLockManager(s, zap.NewNop(), WithMaxRetries(1))

	for i := 0; i < 100; i++ {
		var wg sync.WaitGroup
		var wins int32
		for _, m := range []*LeaseLockManager{a, b} {
			wg.Add(1)
			go func(m *LeaseLockManager) {
				defer wg.Done()
				if m.Acquire(ctx, jobID, time.Minute) {
					atomic.AddInt32(&wins, 1)
				}
			}(m)
		}
		wg.Wait()
		require.Equal(t, int32(1), wins, "iteration %d", i)
		a.Release(ctx, jobID)
	}
}

func TestLeaseLockManager_ExpiredLeaseIsReacquired(t *testing.T) {
	s := memory.New()
	jobID := newSharedJob(t, s)
	ctx := context.Background()

	clock := time.Now()
	m := NewLeaseLockManager(s, zap.NewNop(), WithMaxRetries(1), WithClock(func() time.Time { return clock }))

	require.True(t, m.Acquire(ctx, jobID, time.Minute))
	assert.False(t, m.Acquire(ctx, jobID, time.Minute))

	// a lease equal to now is still held
	clock = clock.Add(time.Minute)
	assert.False(t, m.Acquire(ctx, jobID, time.Minute))

	clock = clock.Add(time.Millisecond)
	assert.True(t, m.Acquire(ctx, jobID, time.Minute))
}

func TestLeaseLockManager_ReleaseThenAcquire(t *testing.T) {
	s := memory.New()
	jobID := newSharedJob(t, s)
	ctx := context.Background()
	m := NewLeaseLockManager(s, zap.NewNop(), WithMaxRetries(1))

	require.True(t, m.Acquire(ctx, jobID, time.Minute))
	m.Release(ctx, jobID)
	assert.True(t, m.Acquire(ctx, jobID, time.Minute))

	m.ReleaseAll(ctx)
	job, err := s.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Nil(t, job.LeaseExpiresAt)
}

func TestLeaseLockManager_UnknownJob(t *testing.T) {
	m := NewLeaseLockManager(memory.New(), zap.NewNop(), WithMaxRetries(1))
	assert.False(t, m.Acquire(context.Background(), "missing", time.Minute))
}
