// Package sqlstore provides a database/sql backed session provider shared by the
// SQLite and Postgres drivers. A session pins one pooled connection and a
// transaction maps onto a native *sql.Tx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coursestore/pkg/domain"
)

// Dialect captures the SQL differences between supported engines.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
}

// SQLite uses positional question-mark placeholders.
var SQLite = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}

// Postgres uses numbered dollar placeholders.
var Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// Table maps an entity onto a relational table keyed by an auto-generated id column.
type Table[E domain.Entity] struct {
	Name string
	// Columns lists the non-key columns in the order produced by Values.
	Columns []string
	Values  func(E) ([]any, error)
	// Scan reads a row selected as id followed by Columns.
	Scan func(RowScanner) (E, error)
}

type statements struct {
	selectOne string
	selectAll string
	insert    string
	update    string
	delete    string
}

func buildStatements[E domain.Entity](d Dialect, t Table[E]) statements {
	cols := strings.Join(t.Columns, ", ")
	placeholders := make([]string, len(t.Columns))
	assignments := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		placeholders[i] = d.Placeholder(i + 1)
		assignments[i] = c + " = " + d.Placeholder(i+1)
	}
	return statements{
		selectOne: fmt.Sprintf("SELECT id, %s FROM %s WHERE id = %s", cols, t.Name, d.Placeholder(1)),
		selectAll: fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", cols, t.Name),
		insert:    fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", t.Name, cols, strings.Join(placeholders, ", ")),
		update:    fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", t.Name, strings.Join(assignments, ", "), d.Placeholder(len(t.Columns)+1)),
		delete:    fmt.Sprintf("DELETE FROM %s WHERE id = %s", t.Name, d.Placeholder(1)),
	}
}

// Store hands out sessions backed by a *sql.DB pool.
type Store[E domain.Entity] struct {
	db      *sql.DB
	dialect Dialect
	table   Table[E]
	stmts   statements
}

// New wraps an open database handle. The caller transfers ownership of db; Close
// closes it.
func New[E domain.Entity](db *sql.DB, dialect Dialect, table Table[E]) *Store[E] {
	return &Store[E]{db: db, dialect: dialect, table: table, stmts: buildStatements(dialect, table)}
}

// Migrate executes schema statements in order.
func (s *Store[E]) Migrate(ctx context.Context, ddl ...string) error {
	for _, stmt := range ddl {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// OpenSession implements domain.SessionFactory by reserving a pooled connection.
func (s *Store[E]) OpenSession(ctx context.Context) (domain.Session[E], error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &session[E]{store: s, conn: conn}, nil
}

// Close closes the underlying pool.
func (s *Store[E]) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store[E]) DB() *sql.DB { return s.db }

// Dialect reports the configured SQL dialect.
func (s *Store[E]) Dialect() Dialect { return s.dialect }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session hands driver errors back unwrapped so callers can match them by
// identity; only failures raised here, such as encoding, carry context.
type session[E domain.Entity] struct {
	store  *Store[E]
	conn   *sql.Conn
	tx     *transaction[E]
	closed bool
}

func (s *session[E]) active() bool { return s.tx != nil && !s.tx.done }

func (s *session[E]) runner() execer {
	if s.active() {
		return s.tx.tx
	}
	return s.conn
}

func (s *session[E]) BeginTransaction(ctx context.Context) (domain.Transaction, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if s.active() {
		return nil, domain.ErrTransactionActive
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.tx = &transaction[E]{tx: tx}
	return s.tx, nil
}

func (s *session[E]) Get(ctx context.Context, id int64) (E, bool, error) {
	var zero E
	if s.closed {
		return zero, false, domain.ErrSessionClosed
	}
	row := s.runner().QueryRowContext(ctx, s.store.stmts.selectOne, id)
	entity, err := s.store.table.Scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

func (s *session[E]) SaveOrUpdate(ctx context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	values, err := s.store.table.Values(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.store.table.Name, err)
	}
	if entity.Key() == 0 {
		var id int64
		if err := s.tx.tx.QueryRowContext(ctx, s.store.stmts.insert, values...).Scan(&id); err != nil {
			return err
		}
		entity.SetKey(id)
		return nil
	}
	res, err := s.tx.tx.ExecContext(ctx, s.store.stmts.update, append(values, entity.Key())...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *session[E]) Delete(ctx context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	res, err := s.tx.tx.ExecContext(ctx, s.store.stmts.delete, entity.Key())
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *session[E]) QueryAll(ctx context.Context) ([]E, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	rows, err := s.runner().QueryContext(ctx, s.store.stmts.selectAll)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]E, 0)
	for rows.Next() {
		entity, err := s.store.table.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *session[E]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var rbErr error
	if s.active() {
		rbErr = s.tx.Rollback()
	}
	return errors.Join(rbErr, s.conn.Close())
}

func (s *session[E]) writable() error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if !s.active() {
		return domain.ErrNoTransaction
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStaleEntity
	}
	return nil
}

type transaction[E domain.Entity] struct {
	tx   *sql.Tx
	done bool
}

func (t *transaction[E]) Commit() error {
	if t.done {
		return domain.ErrTransactionDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *transaction[E]) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
