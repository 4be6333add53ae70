// Package redislease keeps job leases in Redis for deployments that coordinate
// through Redis rather than the job store. A lease is one key per job written
// with SET NX PX, so the key's TTL is the lease expiry.
package redislease

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/RezaEskandarii/cronhook/internal/store"
)

const (
	DefaultKeyPrefix = "cronhook:lease:"
	scanBatch        = 100
)

var _ store.LeaseStore = (*LeaseStore)(nil)

type LeaseStore struct {
	client redis.UniversalClient
	prefix string
	// jobs is consulted before acquiring since a Redis key has no job row to
	// guard. Nil skips the check.
	jobs store.JobStore
}

func NewLeaseStore(client redis.UniversalClient, prefix string, jobs store.JobStore) *LeaseStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &LeaseStore{client: client, prefix: prefix, jobs: jobs}
}

func (s *LeaseStore) key(jobID string) string {
	return s.prefix + jobID
}

// TryAcquireLease sets the lease key only when it does not exist. A key that
// reached its TTL is gone, which is the "lease expired" case.
func (s *LeaseStore) TryAcquireLease(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
	if s.jobs != nil {
		if _, err := s.jobs.GetJob(ctx, jobID); err != nil {
			if errors.Is(err, store.ErrJobNotFound) {
				return false, nil
			}
			return false, err
		}
	}

	ttl := until.Sub(now)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	ok, err := s.client.SetNX(ctx, s.key(jobID), until.UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire lease on job %s", jobID)
	}
	return ok, nil
}

func (s *LeaseStore) ClearLease(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, s.key(jobID)).Err(); err != nil {
		return errors.Wrapf(err, "failed to clear lease on job %s", jobID)
	}
	return nil
}

// ClearAllLeases deletes every lease key. On a cluster each master is
// scanned on its own.
func (s *LeaseStore) ClearAllLeases(ctx context.Context) error {
	pattern := s.prefix + "*"
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		return cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return clearMatching(ctx, node, pattern)
		})
	}
	return clearMatching(ctx, s.client, pattern)
}

// clearMatching collects every key matching pattern before deleting any, so
// the SCAN cursor never runs over a keyspace it is shrinking.
func clearMatching(ctx context.Context, c redis.Cmdable, pattern string) error {
	var keys []string
	iter := c.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to scan leases")
	}

	for start := 0; start < len(keys); start += scanBatch {
		batch := keys[start:min(start+scanBatch, len(keys))]
		// one DEL per key, keys of a batch may live in different slots
		pipe := c.Pipeline()
		for _, key := range batch {
			pipe.Del(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to clear leases")
		}
	}
	return nil
}

// LeaseExpiry returns the expiry of a held lease, or nil when the job is free.
func (s *LeaseStore) LeaseExpiry(ctx context.Context, jobID string) (*time.Time, error) {
	val, err := s.client.Get(ctx, s.key(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read lease on job %s", jobID)
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed lease on job %s", jobID)
	}
	return &t, nil
}
