// Package sqlite provides the SQLite-backed course session provider.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"coursestore/internal/infra/persistence/sqlstore"
	"coursestore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const defaultPath = "coursestore.db"

var pragmas = []string{
	`PRAGMA foreign_keys = ON`,
	`PRAGMA busy_timeout = 5000`,
}

// CourseDDL creates the courses table.
const CourseDDL = `CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	begin_date TEXT,
	end_date TEXT,
	fee INTEGER NOT NULL DEFAULT 0
)`

// NewStore opens (creating if needed) the SQLite database at path and returns a
// course session provider. The pool is capped at one connection: SQLite allows a
// single writer and the pragmas are connection scoped.
func NewStore(ctx context.Context, path string) (*sqlstore.Store[*domain.Course], error) {
	if path == "" {
		path = defaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := sqlstore.New(db, sqlstore.SQLite, sqlstore.CourseTable())
	if err := store.Migrate(ctx, append(pragmas, CourseDDL)...); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return store, nil
}
