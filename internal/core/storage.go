package core

import (
	"context"
	"fmt"

	"coursestore/internal/config"
	"coursestore/internal/infra/persistence/memory"
	"coursestore/internal/infra/persistence/postgres"
	"coursestore/internal/infra/persistence/redis"
	"coursestore/internal/infra/persistence/sqlite"
	"coursestore/internal/infra/persistence/supabase"
	"coursestore/pkg/domain"
)

// CourseSessionFactory is a course session provider that owns backend
// resources released by Close.
type CourseSessionFactory interface {
	domain.SessionFactory[*domain.Course]
	Close() error
}

// OpenCourseSessionFactory selects a course session provider from configuration.
// An empty driver selects sqlite.
func OpenCourseSessionFactory(ctx context.Context, cfg config.StorageConfig) (CourseSessionFactory, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewCourseStore(), nil
	case config.StorageSQLite, "":
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return store, nil
	case config.StorageRedis:
		store, err := redis.NewCourseStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		return store, nil
	case config.StorageSupabase:
		store, err := supabase.NewCourseStore(supabase.Options{
			URL:   cfg.SupabaseURL,
			Key:   cfg.SupabaseKey,
			Table: cfg.SupabaseTable,
		})
		if err != nil {
			return nil, fmt.Errorf("open supabase storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
