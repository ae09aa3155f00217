package supabase

import (
	"context"

	"coursestore/pkg/domain"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

type pendingOp[E domain.Entity] struct {
	kind   opKind
	entity E
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
	s.tx = &transaction[E]{store: s.store}
	return s.tx, nil
}

func (s *session[E]) Get(ctx context.Context, id int64) (E, bool, error) {
	var zero E
	if s.closed {
		return zero, false, domain.ErrSessionClosed
	}
	return s.store.get(ctx, id)
}

func (s *session[E]) SaveOrUpdate(ctx context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	if entity.Key() == 0 {
		s.tx.ops = append(s.tx.ops, pendingOp[E]{kind: opInsert, entity: entity})
		return nil
	}
	if err := s.requireStored(ctx, entity.Key()); err != nil {
		return err
	}
	s.tx.ops = append(s.tx.ops, pendingOp[E]{kind: opUpdate, entity: entity})
	return nil
}

func (s *session[E]) Delete(ctx context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.requireStored(ctx, entity.Key()); err != nil {
		return err
	}
	s.tx.ops = append(s.tx.ops, pendingOp[E]{kind: opDelete, entity: entity})
	return nil
}

func (s *session[E]) QueryAll(ctx context.Context) ([]E, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	return s.store.list(ctx)
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

func (s *session[E]) requireStored(ctx context.Context, id int64) error {
	_, ok, err := s.store.get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStaleEntity
	}
	return nil
}

type transaction[E domain.Entity] struct {
	store *Store[E]
	ops   []pendingOp[E]
	done  bool
}

// Commit replays buffered writes in order and assigns keys to inserted
// entities. Writes applied before a failing one are not undone.
func (t *transaction[E]) Commit() error {
	if t.done {
		return domain.ErrTransactionDone
	}
	t.done = true
	for _, op := range t.ops {
		switch op.kind {
		case opInsert:
			id, err := t.store.insert(op.entity)
			if err != nil {
				return err
			}
			op.entity.SetKey(id)
		case opUpdate:
			if err := t.store.update(op.entity); err != nil {
				return err
			}
		case opDelete:
			if err := t.store.delete(op.entity.Key()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *transaction[E]) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.ops = nil
	return nil
}
