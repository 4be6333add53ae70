package sqlstore

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

func (s *SQLStore) CreateRun(ctx context.Context, run *types.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := utc(s.now())
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.exec(ctx, `
		INSERT INTO `+runsTable+` (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.JobID, utc(run.ScheduledFor), nullTime(run.ExecutedAt), run.Status.String(),
		nullInt(run.ResponseStatus), nullString(run.ResponseBody), run.Attempts, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert run")
	}
	return nil
}

func (s *SQLStore) UpdateRun(ctx context.Context, run *types.Run, expected state.RunStatus) error {
	run.UpdatedAt = utc(s.now())
	res, err := s.exec(ctx, `
		UPDATE `+runsTable+`
		SET status = $1,
		    executed_at = $2,
		    response_status = $3,
		    response_body = $4,
		    attempts = $5,
		    updated_at = $6
		WHERE id = $7 AND status = $8`,
		run.Status.String(), nullTime(run.ExecutedAt), nullInt(run.ResponseStatus), nullString(run.ResponseBody),
		run.Attempts, run.UpdatedAt, run.ID, expected.String(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update run %s", run.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.queryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+runsTable+` WHERE id = $1)`, run.ID).Scan(&exists); err != nil {
		return errors.Wrapf(err, "failed to check run %s", run.ID)
	}
	if !exists {
		return store.ErrRunNotFound
	}
	return store.ErrStaleRun
}

func (s *SQLStore) GetRun(ctx context.Context, runID string) (*types.Run, error) {
	row := s.queryRow(ctx, `SELECT `+runColumns+` FROM `+runsTable+` WHERE id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRunNotFound
		}
		return nil, errors.Wrapf(err, "failed to get run %s", runID)
	}
	return run, nil
}

func (s *SQLStore) ListRuns(ctx context.Context, jobID string, page, pageSize int) (*types.PaginationResult[types.Run], error) {
	page, pageSize, offset := types.NormalizePage(page, pageSize, store.MaxPageSize)

	var totalItems int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM `+runsTable+` WHERE cron_id = $1`, jobID).Scan(&totalItems)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count runs")
	}

	rows, err := s.query(ctx, `
		SELECT `+runColumns+`
		FROM `+runsTable+`
		WHERE cron_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, jobID, pageSize, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run row")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate run rows")
	}
	return types.NewPaginationResult(runs, totalItems, page, pageSize), nil
}

func scanRun(row scanner) (*types.Run, error) {
	var (
		run            types.Run
		status         string
		executedAt     sql.NullTime
		responseStatus sql.NullInt64
		responseBody   sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.JobID, &run.ScheduledFor, &executedAt, &status,
		&responseStatus, &responseBody, &run.Attempts, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	parsed, ok := state.Parse(status)
	if !ok {
		return nil, errors.Newf("unknown run status %q", status)
	}
	run.Status = parsed
	run.ExecutedAt = timePtr(executedAt)
	if responseStatus.Valid {
		code := int(responseStatus.Int64)
		run.ResponseStatus = &code
	}
	run.ResponseBody = responseBody.String
	return &run, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
