package sqlstore

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// TryAcquireLease is a single guarded UPDATE; the row count tells whether this
// caller won the lease.
func (s *SQLStore) TryAcquireLease(ctx context.Context, jobID string, now, until time.Time) (bool, error) {
	res, err := s.exec(ctx, `
		UPDATE `+jobsTable+`
		SET locked_until = $1
		WHERE id = $2
		  AND (locked_until IS NULL OR locked_until < $3)`,
		utc(until), jobID, utc(now),
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire lease on job %s", jobID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return affected > 0, nil
}

func (s *SQLStore) ClearLease(ctx context.Context, jobID string) error {
	_, err := s.exec(ctx, `UPDATE `+jobsTable+` SET locked_until = NULL WHERE id = $1`, jobID)
	if err != nil {
		return errors.Wrapf(err, "failed to clear lease on job %s", jobID)
	}
	return nil
}

func (s *SQLStore) ClearAllLeases(ctx context.Context) error {
	_, err := s.exec(ctx, `UPDATE `+jobsTable+` SET locked_until = NULL WHERE locked_until IS NOT NULL`)
	if err != nil {
		return errors.Wrap(err, "failed to clear leases")
	}
	return nil
}
