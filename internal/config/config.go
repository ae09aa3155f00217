// Package config loads runtime configuration from the process environment,
// optionally seeded from .env files.
//
//	COURSESTORE_STORAGE_DRIVER: memory|sqlite|postgres|redis|supabase (default sqlite)
//	COURSESTORE_SQLITE_PATH: sqlite database file (default ./coursestore.db)
//	COURSESTORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	COURSESTORE_REDIS_ADDR / _PASSWORD / _DB / _PREFIX: redis connection when driver=redis
//	COURSESTORE_SUPABASE_URL / _KEY / _TABLE: PostgREST endpoint when driver=supabase
//	COURSESTORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	COURSESTORE_BLOB_FS_ROOT: directory root when blob driver=fs (default ./exports)
//	COURSESTORE_BLOB_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE: s3 target
//	COURSESTORE_LOG_LEVEL: debug|info|warn|error (default info)
//	COURSESTORE_LOG_FORMAT: text|json (default text)
//	COURSESTORE_METRICS_NAMESPACE: prometheus namespace (default coursestore)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageSupabase = "supabase"
)

// Blob drivers.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Config is the root configuration.
type Config struct {
	Storage StorageConfig
	Blob    BlobConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// StorageConfig selects and configures the course session provider.
type StorageConfig struct {
	Driver        string `env:"COURSESTORE_STORAGE_DRIVER,default=sqlite"`
	SQLitePath    string `env:"COURSESTORE_SQLITE_PATH,default=coursestore.db"`
	PostgresDSN   string `env:"COURSESTORE_POSTGRES_DSN"`
	RedisAddr     string `env:"COURSESTORE_REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"COURSESTORE_REDIS_PASSWORD"`
	RedisDB       int    `env:"COURSESTORE_REDIS_DB,default=0"`
	RedisPrefix   string `env:"COURSESTORE_REDIS_PREFIX,default=courses"`
	SupabaseURL   string `env:"COURSESTORE_SUPABASE_URL"`
	SupabaseKey   string `env:"COURSESTORE_SUPABASE_KEY"`
	SupabaseTable string `env:"COURSESTORE_SUPABASE_TABLE,default=courses"`
}

// BlobConfig selects and configures the snapshot export target.
type BlobConfig struct {
	Driver      string `env:"COURSESTORE_BLOB_DRIVER,default=fs"`
	FSRoot      string `env:"COURSESTORE_BLOB_FS_ROOT,default=exports"`
	S3Bucket    string `env:"COURSESTORE_BLOB_S3_BUCKET"`
	S3Region    string `env:"COURSESTORE_BLOB_S3_REGION,default=us-east-1"`
	S3Endpoint  string `env:"COURSESTORE_BLOB_S3_ENDPOINT"`
	S3PathStyle bool   `env:"COURSESTORE_BLOB_S3_PATH_STYLE,default=false"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `env:"COURSESTORE_LOG_LEVEL,default=info"`
	Format string `env:"COURSESTORE_LOG_FORMAT,default=text"`
}

// MetricsConfig configures the Prometheus recorder.
type MetricsConfig struct {
	Namespace string `env:"COURSESTORE_METRICS_NAMESPACE,default=coursestore"`
}

// Load reads the optional env files (missing files are skipped), decodes the
// environment and validates the result. A variable that does not parse as its
// field type is an error. Variables already present in the
// environment take precedence over file values.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env (%s): %w", f, err)
		}
	}
	var cfg Config
	// Strict mode rejects values that do not parse instead of leaving the zero value.
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageSQLite
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = BlobFilesystem
	}
}

// Validate checks per-driver required settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("COURSESTORE_POSTGRES_DSN required for postgres driver")
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("COURSESTORE_REDIS_ADDR required for redis driver")
		}
	case StorageSupabase:
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			return errors.New("COURSESTORE_SUPABASE_URL and COURSESTORE_SUPABASE_KEY required for supabase driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %s", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return errors.New("COURSESTORE_BLOB_S3_BUCKET required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %s", c.Blob.Driver)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %s", c.Log.Format)
	}
	return nil
}
