// Package memory provides an in-memory session provider used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"

	"coursestore/pkg/domain"
)

// Compile-time contract assertion for the course catalog instantiation.
var _ domain.SessionFactory[*domain.Course] = (*Store[*domain.Course])(nil)

type memoryState[E domain.Entity] struct {
	records map[int64]E
	nextID  int64
}

func newMemoryState[E domain.Entity]() memoryState[E] {
	return memoryState[E]{records: make(map[int64]E)}
}

func (s memoryState[E]) clone(cloneFn func(E) E) memoryState[E] {
	out := memoryState[E]{records: make(map[int64]E, len(s.records)), nextID: s.nextID}
	for k, v := range s.records {
		out.records[k] = cloneFn(v)
	}
	return out
}

func (s memoryState[E]) sorted(cloneFn func(E) E) []E {
	out := make([]E, 0, len(s.records))
	for _, v := range s.records {
		out = append(out, cloneFn(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot[E domain.Entity] struct {
	Records []E   `json:"records"`
	NextID  int64 `json:"next_id"`
}

// Store provides an in-memory transactional store. A transaction holds the
// store write lock from begin until commit or rollback, so writers are serialized.
type Store[E domain.Entity] struct {
	mu    sync.RWMutex
	state memoryState[E]
	clone func(E) E
}

// NewStore constructs an empty store. clone must return an independent copy of
// an entity; stored records never alias caller-owned values.
func NewStore[E domain.Entity](clone func(E) E) *Store[E] {
	return &Store[E]{state: newMemoryState[E](), clone: clone}
}

// NewCourseStore constructs an in-memory course store.
func NewCourseStore() *Store[*domain.Course] {
	return NewStore(domain.CloneCourse)
}

// OpenSession implements domain.SessionFactory.
func (s *Store[E]) OpenSession(ctx context.Context) (domain.Session[E], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session[E]{store: s}, nil
}

// Close implements io.Closer; the memory store holds no external resources.
func (s *Store[E]) Close() error { return nil }

// ExportState clones the current committed state.
func (s *Store[E]) ExportState() Snapshot[E] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot[E]{Records: s.state.sorted(s.clone), NextID: s.state.nextID}
}

// ImportState replaces the committed state with the provided snapshot.
func (s *Store[E]) ImportState(snapshot Snapshot[E]) {
	state := newMemoryState[E]()
	state.nextID = snapshot.NextID
	for _, rec := range snapshot.Records {
		state.records[rec.Key()] = s.clone(rec)
		if rec.Key() > state.nextID {
			state.nextID = rec.Key()
		}
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

type session[E domain.Entity] struct {
	store  *Store[E]
	tx     *transaction[E]
	closed bool
}

func (s *session[E]) active() bool { return s.tx != nil && !s.tx.done }

func (s *session[E]) BeginTransaction(ctx context.Context) (domain.Transaction, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if s.active() {
		return nil, domain.ErrTransactionActive
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.store.mu.Lock()
	s.tx = &transaction[E]{store: s.store, state: s.store.state.clone(s.store.clone)}
	return s.tx, nil
}

func (s *session[E]) Get(_ context.Context, id int64) (E, bool, error) {
	var zero E
	if s.closed {
		return zero, false, domain.ErrSessionClosed
	}
	if s.active() {
		rec, ok := s.tx.state.records[id]
		if !ok {
			return zero, false, nil
		}
		return s.store.clone(rec), true, nil
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	rec, ok := s.store.state.records[id]
	if !ok {
		return zero, false, nil
	}
	return s.store.clone(rec), true, nil
}

func (s *session[E]) SaveOrUpdate(_ context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	state := &s.tx.state
	if entity.Key() == 0 {
		state.nextID++
		entity.SetKey(state.nextID)
		state.records[state.nextID] = s.store.clone(entity)
		return nil
	}
	if _, ok := state.records[entity.Key()]; !ok {
		return domain.ErrStaleEntity
	}
	state.records[entity.Key()] = s.store.clone(entity)
	return nil
}

func (s *session[E]) Delete(_ context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, ok := s.tx.state.records[entity.Key()]; !ok {
		return domain.ErrStaleEntity
	}
	delete(s.tx.state.records, entity.Key())
	return nil
}

func (s *session[E]) QueryAll(_ context.Context) ([]E, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if s.active() {
		return s.tx.state.sorted(s.store.clone), nil
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	return s.store.state.sorted(s.store.clone), nil
}

func (s *session[E]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.active() {
		return s.tx.Rollback()
	}
	return nil
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

// transaction is a working copy of the store state applied on commit.
type transaction[E domain.Entity] struct {
	store *Store[E]
	state memoryState[E]
	done  bool
}

func (tx *transaction[E]) Commit() error {
	if tx.done {
		return domain.ErrTransactionDone
	}
	tx.done = true
	tx.store.state = tx.state
	tx.store.mu.Unlock()
	return nil
}

func (tx *transaction[E]) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}
