// Package postgres provides the Postgres-backed course session provider, driven
// through pgx's database/sql adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"coursestore/internal/infra/persistence/sqlstore"
	"coursestore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/coursestore?sslmode=disable"
)

// CourseDDL creates the courses table.
const CourseDDL = `CREATE TABLE IF NOT EXISTS courses (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	begin_date TEXT,
	end_date TEXT,
	fee INTEGER NOT NULL DEFAULT 0
)`

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// NewStore opens a Postgres-backed course provider using dsn (falls back to
// defaultDSN), verifies connectivity and applies the course DDL.
func NewStore(ctx context.Context, dsn string) (*sqlstore.Store[*domain.Course], error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := sqlstore.New(db, sqlstore.Postgres, sqlstore.CourseTable())
	if err := store.Migrate(ctx, CourseDDL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
