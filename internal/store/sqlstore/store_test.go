package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/cronhook/internal/state"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/types"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Postgres), mock
}

func TestDialect_Rebind(t *testing.T) {
	q := "UPDATE t SET a = $1 WHERE id = $2 AND (b IS NULL OR b < $10) AND c = '$'"
	assert.Equal(t, q, Postgres.Rebind(q))
	assert.Equal(t, "UPDATE t SET a = ?1 WHERE id = ?2 AND (b IS NULL OR b < ?10) AND c = '$'", SQLite.Rebind(q))
}

func TestDialect_String(t *testing.T) {
	assert.Equal(t, "postgres", Postgres.String())
	assert.Equal(t, "sqlite3", SQLite.String())
	assert.Equal(t, "unknown", Dialect(99).String())
}

func TestSQLStore_TryAcquireLease(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE cronhook_jobs\s+SET locked_until = \$1\s+WHERE id = \$2\s+AND \(locked_until IS NULL OR locked_until < \$3\)`).
		WithArgs(sqlmock.AnyArg(), "job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.TryAcquireLease(context.Background(), "job-1", now, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_TryAcquireLease_Held(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec("UPDATE cronhook_jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.TryAcquireLease(context.Background(), "job-1", now, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_TryAcquireLease_Error(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec("UPDATE cronhook_jobs").
		WillReturnError(sql.ErrConnDone)

	ok, err := s.TryAcquireLease(context.Background(), "job-1", now, now.Add(time.Minute))
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "failed to acquire lease")
}

func TestSQLStore_ClearLease(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE cronhook_jobs SET locked_until = NULL WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.ClearLease(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ClearAllLeases(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE cronhook_jobs SET locked_until = NULL WHERE locked_until IS NOT NULL`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.ClearAllLeases(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateJob(t *testing.T) {
	s, mock := newMockStore(t)
	job := &types.Job{URI: "http://x/ok", Method: "GET", Schedule: "*/1 * * * *", TimeZone: "UTC", Enabled: true}

	mock.ExpectExec("INSERT INTO cronhook_jobs").
		WithArgs(sqlmock.AnyArg(), "", "http://x/ok", "GET", nil, "*/1 * * * *", "UTC", true, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateJob(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.False(t, job.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetJob(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lease := created.Add(5 * time.Minute)

	rows := sqlmock.NewRows([]string{"id", "name", "uri", "http_method", "body", "schedule", "time_zone",
		"enabled", "locked_until", "created_at", "updated_at"}).
		AddRow("job-1", "ping", "http://x/ok", "POST", `{"a":1}`, "* * * * *", "UTC", true, lease, created, created)
	mock.ExpectQuery(`SELECT .* FROM cronhook_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "POST", job.Method)
	assert.Equal(t, `{"a":1}`, job.Body)
	require.NotNil(t, job.LeaseExpiresAt)
	assert.True(t, job.LeaseExpiresAt.Equal(lease))
}

func TestSQLStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM cronhook_jobs").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestSQLStore_UpdateJob_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE cronhook_jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateJob(context.Background(), &types.Job{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestSQLStore_DeleteJob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM cronhook_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.DeleteJob(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateRun(t *testing.T) {
	s, mock := newMockStore(t)
	run := &types.Run{ID: "run-1", Status: state.StatusRunning}

	mock.ExpectExec(`UPDATE cronhook_runs`).
		WithArgs("running", nil, nil, nil, 0, sqlmock.AnyArg(), "run-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateRun(context.Background(), run, state.StatusPending))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateRun_Stale(t *testing.T) {
	s, mock := newMockStore(t)
	run := &types.Run{ID: "run-1", Status: state.StatusFailed}

	mock.ExpectExec(`UPDATE cronhook_runs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.UpdateRun(context.Background(), run, state.StatusRunning)
	assert.ErrorIs(t, err, store.ErrStaleRun)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	run := &types.Run{ID: "run-1", Status: state.StatusRunning}

	mock.ExpectExec(`UPDATE cronhook_runs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.UpdateRun(context.Background(), run, state.StatusPending)
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestSQLStore_ListRuns(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cronhook_runs WHERE cron_id = \$1`).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM cronhook_runs\s+WHERE cron_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs("job-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cron_id", "scheduled_for", "executed_at", "status",
			"response_status", "response_body", "attempts", "created_at", "updated_at"}).
			AddRow("run-1", "job-1", now, now, "success", 200, "ok", 0, now, now))

	res, err := s.ListRuns(context.Background(), "job-1", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, state.StatusSuccess, res.Items[0].Status)
	require.NotNil(t, res.Items[0].ResponseStatus)
	assert.Equal(t, 200, *res.Items[0].ResponseStatus)
	assert.Equal(t, "ok", res.Items[0].ResponseBody)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ListEnabledJobs(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE enabled = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "uri", "http_method", "body", "schedule", "time_zone",
			"enabled", "locked_until", "created_at", "updated_at"}).
			AddRow("job-1", "", "http://x", "GET", nil, "* * * * *", "UTC", true, nil, now, now).
			AddRow("job-2", "", "http://y", "GET", nil, "0 * * * *", "UTC", true, nil, now, now))

	jobs, err := s.ListEnabledJobs(context.Background())
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Nil(t, jobs[0].LeaseExpiresAt)
}

func TestSQLStore_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectClose()

	s := New(db, Postgres)
	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
