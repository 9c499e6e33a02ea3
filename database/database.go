package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/badger"
	"github.com/sagarc03/remotestore/database/memory"
	"github.com/sagarc03/remotestore/database/postgres"
	"github.com/sagarc03/remotestore/database/redis"
	"github.com/sagarc03/remotestore/database/sqlite"
)

// Supported backend types.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeBadger   = "badger"
	TypeRedis    = "redis"
)

// Config holds the configuration for connecting to a storage backend.
type Config struct {
	// Type is one of memory, sqlite, postgres, badger or redis.
	Type string `mapstructure:"type" validate:"required,oneof=memory sqlite postgres badger redis"`
	// DSN is the data source name. For badger it is a directory or
	// ":memory:"; for redis a redis:// URL.
	DSN string `mapstructure:"dsn" validate:"required_unless=Type memory"`
	// Tables names the SQL tables. Ignored by the key-value backends.
	Tables remotestore.Tables `mapstructure:"tables"`
}

// Database is a connected backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() remotestore.Backend
	Close() error
}

// Connect opens the configured backend. It does not migrate or validate;
// callers run Migrate and Validate as needed.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	switch cfg.Type {
	case TypeMemory:
		return memory.Connect(), nil
	case TypeSQLite:
		if err := cfg.Tables.Validate(); err != nil {
			return nil, fmt.Errorf("connect sqlite: %w", err)
		}
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case TypePostgres:
		if err := cfg.Tables.Validate(); err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case TypeBadger:
		db, err := badger.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	case TypeRedis:
		db, err := redis.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}

// Open connects, migrates and validates the backend, returning it ready
// for use.
func Open(ctx context.Context, cfg Config) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
