// Package supabase provides a session provider backed by a Supabase (PostgREST)
// table. PostgREST has no multi-request transactions, so a transaction buffers
// writes and replays them in order on commit.
package supabase

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/supabase-community/supabase-go"

	"coursestore/pkg/domain"
)

const (
	defaultTable = "courses"
	keyColumn    = "id"
)

// Options configures the Supabase connection.
type Options struct {
	URL   string
	Key   string
	Table string
}

// Store implements domain.SessionFactory over one PostgREST table.
type Store[E domain.Entity] struct {
	client *supabase.Client
	table  string
}

var _ domain.SessionFactory[*domain.Course] = (*Store[*domain.Course])(nil)

// NewStore creates a provider for the given table.
func NewStore[E domain.Entity](opts Options) (*Store[E], error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	client, err := supabase.NewClient(opts.URL, opts.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Store[E]{client: client, table: opts.Table}, nil
}

// NewCourseStore creates a course provider.
func NewCourseStore(opts Options) (*Store[*domain.Course], error) {
	return NewStore[*domain.Course](opts)
}

// OpenSession implements domain.SessionFactory.
func (s *Store[E]) OpenSession(ctx context.Context) (domain.Session[E], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session[E]{store: s}, nil
}

// Close is a no-op; the HTTP client holds no dedicated resources.
func (s *Store[E]) Close() error { return nil }

func (s *Store[E]) get(ctx context.Context, id int64) (E, bool, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	var rows []E
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq(keyColumn, strconv.FormatInt(id, 10)).
		ExecuteTo(&rows)
	if err != nil {
		return zero, false, fmt.Errorf("failed to get %s %d: %w", s.table, id, err)
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	return rows[0], true, nil
}

func (s *Store[E]) list(ctx context.Context) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []E
	_, err := s.client.From(s.table).
		Select("*", "", false).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table, err)
	}
	if rows == nil {
		rows = make([]E, 0)
	}
	sortByKey(rows)
	return rows, nil
}

func (s *Store[E]) insert(entity E) (int64, error) {
	var rows []E
	_, err := s.client.From(s.table).
		Insert(entity, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", s.table, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("insert into %s returned no representation", s.table)
	}
	return rows[0].Key(), nil
}

func (s *Store[E]) update(entity E) error {
	var rows []E
	_, err := s.client.From(s.table).
		Update(entity, "representation", "").
		Eq(keyColumn, strconv.FormatInt(entity.Key(), 10)).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to update %s %d: %w", s.table, entity.Key(), err)
	}
	if len(rows) == 0 {
		return domain.ErrStaleEntity
	}
	return nil
}

func (s *Store[E]) delete(id int64) error {
	var rows []E
	_, err := s.client.From(s.table).
		Delete("representation", "").
		Eq(keyColumn, strconv.FormatInt(id, 10)).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", s.table, id, err)
	}
	if len(rows) == 0 {
		return domain.ErrStaleEntity
	}
	return nil
}

func sortByKey[E domain.Entity](rows []E) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key() < rows[j].Key() })
}
