package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"coursestore/pkg/domain"
)

func TestNewStoreAppliesDDL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return db, nil
	})
	defer restore()

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS courses")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if gotDriver != "pgx" || gotDSN != defaultDSN {
		t.Fatalf("unexpected open args %q %q", gotDriver, gotDSN)
	}
	if store.Dialect().Name != "postgres" {
		t.Fatalf("expected postgres dialect, got %s", store.Dialect().Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewStorePropagatesFailures(t *testing.T) {
	openErr := errors.New("dial refused")
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, openErr })
	if _, err := NewStore(context.Background(), "postgres://x"); !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	pingErr := errors.New("no route")
	mock.ExpectPing().WillReturnError(pingErr)
	mock.ExpectClose()
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://x"); !errors.Is(err, pingErr) {
		t.Fatalf("expected ping error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("COURSESTORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("COURSESTORE_TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	sess, err := store.OpenSession(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = sess.Close() }()
	tx, err := sess.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	course := &domain.Course{Name: "Integration", Fee: 10}
	if err := sess.SaveOrUpdate(ctx, course); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sess.Delete(ctx, course); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, ok, err := sess.Get(ctx, course.ID); err != nil || ok {
		t.Fatalf("expected course gone, ok=%v err=%v", ok, err)
	}
}
