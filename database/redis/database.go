package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sagarc03/remotestore"
)

const pingTimeout = 3 * time.Second

type database struct {
	client *redis.Client
	store  *Store
}

// Connect parses a redis:// URL and returns a database whose keys are
// namespaced by DefaultKeyPrefix.
func Connect(ctx context.Context, dsn string) (*database, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("connect redis: invalid url: %w", err)
	}

	client := redis.NewClient(opts)

	return &database{
		client: client,
		store:  newStore(client, DefaultKeyPrefix, nil),
	}, nil
}

// Ping verifies the server is reachable.
func (d *database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w: %w", remotestore.ErrBackingStore, err)
	}
	return nil
}

// Migrate is a no-op; Redis needs no schema.
func (d *database) Migrate(ctx context.Context) error {
	return ctx.Err()
}

// Validate checks the server answers.
func (d *database) Validate(ctx context.Context) error {
	return d.Ping(ctx)
}

func (d *database) GetRepo() remotestore.Backend {
	return d.store
}

func (d *database) Close() error {
	return d.client.Close()
}
