// Package db opens the SQL backends and applies the embedded schema migrations.
package db

import (
	"context"
	"database/sql"
	"embed"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/internal/store/sqlstore"
)

const migrationsTable = "cronhook_schema_migrations"

//go:embed migrations
var migrations embed.FS

// Open establishes a connection and verifies it with a ping.
func Open(ctx context.Context, dialect sqlstore.Dialect, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.Newf("%s connection string is unset", dialect)
	}
	switch dialect {
	case sqlstore.Postgres:
	case sqlstore.SQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, errors.Newf("unsupported database dialect %s", dialect)
	}

	db, err := sql.Open(dialect.String(), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s database", dialect)
	}
	if dialect == sqlstore.SQLite {
		// a single writer avoids SQLITE_BUSY between the lease updates of concurrent firings
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "unable to reach %s database", dialect)
	}
	return db, nil
}

// Migrate applies every pending up migration for dialect. It opens its own
// connection because the migrate drivers close the handle they are given.
// golang-migrate takes a database level lock, so concurrent instances starting
// together apply the schema once.
func Migrate(ctx context.Context, dialect sqlstore.Dialect, dsn string, logger *zap.Logger) error {
	conn, err := Open(ctx, dialect, dsn)
	if err != nil {
		return err
	}

	var driver database.Driver
	switch dialect {
	case sqlstore.Postgres:
		driver, err = postgres.WithInstance(conn, &postgres.Config{MigrationsTable: migrationsTable})
	case sqlstore.SQLite:
		driver, err = sqlite3.WithInstance(conn, &sqlite3.Config{MigrationsTable: migrationsTable})
	}
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "unable to create migration driver")
	}

	source, err := iofs.New(migrations, migrationsDir(dialect))
	if err != nil {
		_ = driver.Close()
		return errors.Wrap(err, "unable to read embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect.String(), driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return errors.Wrap(err, "unable to create migrations")
	}
	defer m.Close()
	m.Log = &migrateLogger{logger: logger.Sugar()}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "unable to run migrations")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "unable to read schema version")
	}
	logger.Info("schema is up to date",
		zap.String("dialect", dialect.String()),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func migrationsDir(dialect sqlstore.Dialect) string {
	if dialect == sqlstore.SQLite {
		return "migrations/sqlite"
	}
	return "migrations/postgres"
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

// migrateLogger routes golang-migrate output into zap.
type migrateLogger struct {
	logger *zap.SugaredLogger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
