package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) a SQLite-backed store at path.
// The parent directory is created if missing; ":memory:" is supported.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("store: sqlite parent dir: %w", err)
	}

	db, err := openAndInit(ctx, "sqlite", path)
	if err != nil {
		return nil, err
	}
	return newSQLStore(db, sqliteDialect, opts...), nil
}

// OpenPostgres opens a PostgreSQL-backed store using the given DSN.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := openAndInit(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	return newSQLStore(db, postgresDialect, opts...), nil
}

// openAndInit opens the pool, verifies connectivity and applies the schema.
func openAndInit(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s database: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: %s connection failed: %w", driver, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: initialize %s schema: %w", driver, err)
	}
	return db, nil
}

// ensureParentDir creates the parent directory of a sqlite file path.
// Skipped for in-memory databases and file: URIs without a directory.
func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file::memory") {
		return nil
	}
	fsPath := strings.TrimPrefix(path, "file:")
	if before, _, ok := strings.Cut(fsPath, "?"); ok {
		fsPath = before
	}
	dir := filepath.Dir(fsPath)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
