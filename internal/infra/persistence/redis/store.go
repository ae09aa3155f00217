// Package redis provides a Redis-backed session provider. Entities are stored as
// JSON documents with a sorted-set key index; a transaction buffers writes and
// applies them atomically on commit using WATCH/MULTI/EXEC.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"coursestore/pkg/domain"
)

const defaultPrefix = "courses"

// Options configures the Redis connection used by NewCourseStore.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store implements domain.SessionFactory on top of a go-redis client.
type Store[E domain.Entity] struct {
	client redis.UniversalClient
	prefix string
}

var _ domain.SessionFactory[*domain.Course] = (*Store[*domain.Course])(nil)

// NewStore wraps an existing client. Keys are namespaced by prefix.
func NewStore[E domain.Entity](client redis.UniversalClient, prefix string) *Store[E] {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store[E]{client: client, prefix: prefix}
}

// NewCourseStore dials Redis and verifies connectivity.
func NewCourseStore(ctx context.Context, opts Options) (*Store[*domain.Course], error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStore[*domain.Course](client, opts.Prefix), nil
}

// OpenSession implements domain.SessionFactory. Sessions share the client pool.
func (s *Store[E]) OpenSession(ctx context.Context) (domain.Session[E], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session[E]{store: s}, nil
}

// Close closes the client.
func (s *Store[E]) Close() error { return s.client.Close() }

func (s *Store[E]) entityKey(id int64) string {
	return s.prefix + ":" + strconv.FormatInt(id, 10)
}

func (s *Store[E]) indexKey() string { return s.prefix + ":ids" }

func (s *Store[E]) seqKey() string { return s.prefix + ":seq" }

func (s *Store[E]) load(ctx context.Context, id int64) (E, bool, error) {
	var zero E
	val, err := s.client.Get(ctx, s.entityKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s: %w", s.entityKey(id), err)
	}
	entity, err := decode[E](val)
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

func (s *Store[E]) exists(ctx context.Context, id int64) (bool, error) {
	n, err := s.client.Exists(ctx, s.entityKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", s.entityKey(id), err)
	}
	return n > 0, nil
}

func (s *Store[E]) loadAll(ctx context.Context) ([]E, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	out := make([]E, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + ":" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		entity, err := decode[E]([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func decode[E domain.Entity](raw []byte) (E, error) {
	var entity E
	if err := json.Unmarshal(raw, &entity); err != nil {
		return entity, fmt.Errorf("decode entity: %w", err)
	}
	return entity, nil
}
