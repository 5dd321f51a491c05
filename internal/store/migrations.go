package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

type migrator struct {
	dir       string
	exec      func(ctx context.Context, query string, args ...any) error
	applied   func(ctx context.Context, version string) (bool, error)
	markQuery string
}

// MigratePostgres applies pending PostgreSQL migrations and returns their versions.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	m := migrator{
		dir: "migrations/postgres",
		exec: func(ctx context.Context, query string, args ...any) error {
			_, err := pool.Exec(ctx, query, args...)
			return err
		},
		applied: func(ctx context.Context, version string) (bool, error) {
			var ok bool
			err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&ok)
			return ok, err
		},
		markQuery: `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
	}
	if err := m.exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	return m.run(ctx, func(t time.Time) any { return t })
}

// MigrateSQLite applies pending SQLite migrations and returns their versions.
func MigrateSQLite(ctx context.Context, db *sql.DB) ([]string, error) {
	m := migrator{
		dir: "migrations/sqlite",
		exec: func(ctx context.Context, query string, args ...any) error {
			_, err := db.ExecContext(ctx, query, args...)
			return err
		},
		applied: func(ctx context.Context, version string) (bool, error) {
			var ok bool
			err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = ?)`, version).Scan(&ok)
			return ok, err
		},
		markQuery: `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
	}
	if err := m.exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	return m.run(ctx, func(t time.Time) any { return formatTime(t) })
}

func (m migrator) run(ctx context.Context, stamp func(time.Time) any) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, m.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var done []string
	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		ok, err := m.applied(ctx, version)
		if err != nil {
			return done, fmt.Errorf("check migration %s: %w", version, err)
		}
		if ok {
			continue
		}
		body, err := migrationFS.ReadFile(path.Join(m.dir, name))
		if err != nil {
			return done, err
		}
		if err := m.exec(ctx, string(body)); err != nil {
			return done, fmt.Errorf("apply migration %s: %w", version, err)
		}
		if err := m.exec(ctx, m.markQuery, version, stamp(time.Now())); err != nil {
			return done, fmt.Errorf("record migration %s: %w", version, err)
		}
		done = append(done, version)
	}
	return done, nil
}
