package sqlstore

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

func (s *SQLStore) CreateJob(ctx context.Context, job *types.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := utc(s.now())
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.exec(ctx, `
		INSERT INTO `+jobsTable+` (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.Name, job.URI, job.Method, nullString(job.Body), job.Schedule, job.TimeZone,
		job.Enabled, nullTime(job.LeaseExpiresAt), utc(job.CreatedAt), job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert job")
	}
	return nil
}

func (s *SQLStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	row := s.queryRow(ctx, `SELECT `+jobColumns+` FROM `+jobsTable+` WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, errors.Wrapf(err, "failed to get job %s", jobID)
	}
	return job, nil
}

func (s *SQLStore) UpdateJob(ctx context.Context, job *types.Job) error {
	job.UpdatedAt = utc(s.now())
	res, err := s.exec(ctx, `
		UPDATE `+jobsTable+`
		SET name = $1,
		    uri = $2,
		    http_method = $3,
		    body = $4,
		    schedule = $5,
		    time_zone = $6,
		    enabled = $7,
		    updated_at = $8
		WHERE id = $9`,
		job.Name, job.URI, job.Method, nullString(job.Body), job.Schedule, job.TimeZone,
		job.Enabled, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %s", job.ID)
	}
	return requireAffected(res, store.ErrJobNotFound)
}

func (s *SQLStore) DeleteJob(ctx context.Context, jobID string) error {
	res, err := s.exec(ctx, `DELETE FROM `+jobsTable+` WHERE id = $1`, jobID)
	if err != nil {
		return errors.Wrapf(err, "failed to delete job %s", jobID)
	}
	return requireAffected(res, store.ErrJobNotFound)
}

func (s *SQLStore) ListJobs(ctx context.Context, page, pageSize int) (*types.PaginationResult[types.Job], error) {
	page, pageSize, offset := types.NormalizePage(page, pageSize, store.MaxPageSize)

	var totalItems int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM `+jobsTable).Scan(&totalItems); err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}

	rows, err := s.query(ctx, `
		SELECT `+jobColumns+`
		FROM `+jobsTable+`
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	return types.NewPaginationResult(jobs, totalItems, page, pageSize), nil
}

func (s *SQLStore) ListEnabledJobs(ctx context.Context) ([]types.Job, error) {
	rows, err := s.query(ctx, `
		SELECT `+jobColumns+`
		FROM `+jobsTable+`
		WHERE enabled = $1
		ORDER BY created_at ASC`, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list enabled jobs")
	}
	defer rows.Close()

	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]types.Job, error) {
	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job row")
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate job rows")
	}
	return jobs, nil
}

func scanJob(row scanner) (*types.Job, error) {
	var (
		job         types.Job
		body        sql.NullString
		lockedUntil sql.NullTime
	)
	err := row.Scan(
		&job.ID, &job.Name, &job.URI, &job.Method, &body, &job.Schedule, &job.TimeZone,
		&job.Enabled, &lockedUntil, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Body = body.String
	job.LeaseExpiresAt = timePtr(lockedUntil)
	return &job, nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
