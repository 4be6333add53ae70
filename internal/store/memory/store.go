// Package memory is a process-local Store. It is used for tests and for running a
// single instance without a database; leases are only meaningful inside one process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu   sync.RWMutex
	jobs map[string]*types.Job
	runs map[string]*types.Run
	now  func() time.Time
}

func New() *Store {
	return &Store{
		jobs: make(map[string]*types.Job),
		runs: make(map[string]*types.Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *Store) CreateJob(_ context.Context, job *types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	t := m.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = t
	}
	job.UpdatedAt = t
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *Store) GetJob(_ context.Context, jobID string) (*types.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return copyJob(j), nil
}

func (m *Store) UpdateJob(_ context.Context, job *types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.jobs[job.ID]
	if !ok {
		return store.ErrJobNotFound
	}
	cp := *job
	cp.LeaseExpiresAt = existing.LeaseExpiresAt
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = m.now()
	m.jobs[job.ID] = &cp

	job.CreatedAt = cp.CreatedAt
	job.UpdatedAt = cp.UpdatedAt
	job.LeaseExpiresAt = cp.LeaseExpiresAt
	return nil
}

func (m *Store) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return store.ErrJobNotFound
	}
	delete(m.jobs, jobID)
	return nil
}

func (m *Store) ListJobs(_ context.Context, page, pageSize int) (*types.PaginationResult[types.Job], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]types.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, *copyJob(j))
	}
	sort.Slice(all, func(a, b int) bool { return all[a].CreatedAt.Before(all[b].CreatedAt) })

	page, pageSize, offset := types.NormalizePage(page, pageSize, store.MaxPageSize)
	return types.NewPaginationResult(window(all, offset, pageSize), len(all), page, pageSize), nil
}

func (m *Store) ListEnabledJobs(_ context.Context) ([]types.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Job
	for _, j := range m.jobs {
		if j.Enabled {
			out = append(out, *copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (m *Store) CreateRun(_ context.Context, run *types.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	t := m.now()
	run.CreatedAt = t
	run.UpdatedAt = t
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *Store) UpdateRun(_ context.Context, run *types.Run, expected state.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.runs[run.ID]
	if !ok {
		return store.ErrRunNotFound
	}
	if existing.Status != expected {
		return store.ErrStaleRun
	}
	run.UpdatedAt = m.now()
	run.CreatedAt = existing.CreatedAt
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *Store) GetRun(_ context.Context, runID string) (*types.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	return copyRun(r), nil
}

func (m *Store) ListRuns(_ context.Context, jobID string, page, pageSize int) (*types.PaginationResult[types.Run], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []types.Run
	for _, r := range m.runs {
		if r.JobID == jobID {
			all = append(all, *copyRun(r))
		}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].CreatedAt.After(all[b].CreatedAt) })

	page, pageSize, offset := types.NormalizePage(page, pageSize, store.MaxPageSize)
	return types.NewPaginationResult(window(all, offset, pageSize), len(all), page, pageSize), nil
}

// TryAcquireLease checks and sets the lease under the store mutex, which makes
// it the in-process equivalent of a conditional update.
func (m *Store) TryAcquireLease(_ context.Context, jobID string, now, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return false, nil
	}
	if j.LeaseExpiresAt != nil && !j.LeaseExpiresAt.Before(now) {
		return false, nil
	}
	u := until
	j.LeaseExpiresAt = &u
	return true, nil
}

func (m *Store) ClearLease(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.jobs[jobID]; ok {
		j.LeaseExpiresAt = nil
	}
	return nil
}

func (m *Store) ClearAllLeases(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		j.LeaseExpiresAt = nil
	}
	return nil
}

func (m *Store) Close() error { return nil }

func copyJob(j *types.Job) *types.Job {
	cp := *j
	if j.LeaseExpiresAt != nil {
		t := *j.LeaseExpiresAt
		cp.LeaseExpiresAt = &t
	}
	return &cp
}

func copyRun(r *types.Run) *types.Run {
	cp := *r
	if r.ExecutedAt != nil {
		t := *r.ExecutedAt
		cp.ExecutedAt = &t
	}
	if r.ResponseStatus != nil {
		s := *r.ResponseStatus
		cp.ResponseStatus = &s
	}
	return &cp
}

func window[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
