package memory

import (
	"context"

	"github.com/sagarc03/remotestore"
)

type database struct {
	store *Store
}

// Connect returns an empty in-memory database. Contents are lost on Close.
func Connect(opts ...Option) *database {
	return &database{store: New(opts...)}
}

func (d *database) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Migrate is a no-op; the maps are created by New.
func (d *database) Migrate(ctx context.Context) error {
	return ctx.Err()
}

func (d *database) Validate(ctx context.Context) error {
	return ctx.Err()
}

func (d *database) GetRepo() remotestore.Backend {
	return d.store
}

func (d *database) Close() error {
	return nil
}
