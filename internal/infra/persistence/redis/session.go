package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"coursestore/pkg/domain"
)

// pendingWrite is a buffered mutation; payload is nil for deletes.
type pendingWrite struct {
	payload []byte
	// existing marks writes whose key must still be present at commit.
	existing bool
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
	s.tx = &transaction[E]{store: s.store, ctx: ctx, writes: make(map[int64]pendingWrite)}
	return s.tx, nil
}

func (s *session[E]) Get(ctx context.Context, id int64) (E, bool, error) {
	var zero E
	if s.closed {
		return zero, false, domain.ErrSessionClosed
	}
	if s.active() {
		if w, ok := s.tx.writes[id]; ok {
			if w.payload == nil {
				return zero, false, nil
			}
			entity, err := decode[E](w.payload)
			return entity, err == nil, err
		}
	}
	return s.store.load(ctx, id)
}

func (s *session[E]) SaveOrUpdate(ctx context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	existing := entity.Key() != 0
	if existing {
		ok, err := s.present(ctx, entity.Key())
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStaleEntity
		}
	} else {
		id, err := s.store.client.Incr(ctx, s.store.seqKey()).Result()
		if err != nil {
			return fmt.Errorf("allocate key: %w", err)
		}
		entity.SetKey(id)
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	s.tx.buffer(entity.Key(), pendingWrite{payload: payload, existing: existing})
	return nil
}

func (s *session[E]) Delete(ctx context.Context, entity E) error {
	if err := s.writable(); err != nil {
		return err
	}
	ok, err := s.present(ctx, entity.Key())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStaleEntity
	}
	s.tx.buffer(entity.Key(), pendingWrite{existing: true})
	return nil
}

func (s *session[E]) QueryAll(ctx context.Context) ([]E, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	stored, err := s.store.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if !s.active() || len(s.tx.writes) == 0 {
		return stored, nil
	}
	merged := make(map[int64]E, len(stored))
	for _, e := range stored {
		merged[e.Key()] = e
	}
	for id, w := range s.tx.writes {
		if w.payload == nil {
			delete(merged, id)
			continue
		}
		entity, err := decode[E](w.payload)
		if err != nil {
			return nil, err
		}
		merged[id] = entity
	}
	out := make([]E, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
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

// present reports whether id resolves to a record, honouring buffered writes.
func (s *session[E]) present(ctx context.Context, id int64) (bool, error) {
	if w, ok := s.tx.writes[id]; ok {
		return w.payload != nil, nil
	}
	return s.store.exists(ctx, id)
}

type transaction[E domain.Entity] struct {
	store  *Store[E]
	ctx    context.Context
	writes map[int64]pendingWrite
	order  []int64
	done   bool
}

func (t *transaction[E]) buffer(id int64, w pendingWrite) {
	if prev, ok := t.writes[id]; ok {
		w.existing = prev.existing
	} else {
		t.order = append(t.order, id)
	}
	t.writes[id] = w
}

// Commit applies the buffered writes in one MULTI/EXEC. Keys that existed when
// the write was buffered are watched and re-checked so a concurrent delete
// surfaces as ErrStaleEntity.
func (t *transaction[E]) Commit() error {
	if t.done {
		return domain.ErrTransactionDone
	}
	t.done = true
	if len(t.order) == 0 {
		return nil
	}
	ctx := t.ctx
	var watched []string
	for _, id := range t.order {
		if t.writes[id].existing {
			watched = append(watched, t.store.entityKey(id))
		}
	}
	apply := func(tx *redis.Tx) error {
		for _, key := range watched {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n == 0 {
				return domain.ErrStaleEntity
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range t.order {
				w := t.writes[id]
				key := t.store.entityKey(id)
				if w.payload == nil {
					pipe.Del(ctx, key)
					pipe.ZRem(ctx, t.store.indexKey(), id)
					continue
				}
				pipe.Set(ctx, key, w.payload, 0)
				pipe.ZAdd(ctx, t.store.indexKey(), redis.Z{Score: float64(id), Member: id})
			}
			return nil
		})
		return err
	}
	err := t.store.client.Watch(ctx, apply, watched...)
	if errors.Is(err, domain.ErrStaleEntity) {
		return err
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the buffered writes. Keys allocated for inserts are not reused.
func (t *transaction[E]) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.writes = nil
	t.order = nil
	return nil
}
