// Package sqlstore implements store.Store on database/sql for PostgreSQL (lib/pq)
// and SQLite (go-sqlite3). Every lease mutation is one UPDATE statement whose
// WHERE clause carries the guard, so two instances can never both win it.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/RezaEskandarii/cronhook/internal/store"
)

var _ store.Store = (*SQLStore)(nil)

const (
	jobsTable = "cronhook_jobs"
	runsTable = "cronhook_runs"

	jobColumns = `id, name, uri, http_method, body, schedule, time_zone,
		enabled, locked_until, created_at, updated_at`
	runColumns = `id, cron_id, scheduled_for, executed_at, status,
		response_status, response_body, attempts, created_at, updated_at`
)

type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: utc(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
