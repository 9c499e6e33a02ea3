package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sagarc03/remotestore"
)

// InMemoryDSN opens a database that lives only as long as the process.
const InMemoryDSN = ":memory:"

type database struct {
	db    *badger.DB
	store *Store
}

// Connect opens the BadgerDB directory at dsn, or an in-memory database when
// dsn is InMemoryDSN.
func Connect(ctx context.Context, dsn string) (*database, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connect badger: %w", err)
	}

	var opts badger.Options
	if dsn == InMemoryDSN {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dsn)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("connect badger %s: %w", dsn, err)
	}

	return &database{db: db, store: newStore(db, nil)}, nil
}

// Ping verifies the database is open.
func (d *database) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return fmt.Errorf("ping badger: %w: database closed", remotestore.ErrBackingStore)
	}
	return nil
}

// Migrate is a no-op; the key layout needs no schema.
func (d *database) Migrate(ctx context.Context) error {
	return ctx.Err()
}

// Validate is a no-op; the key layout needs no schema.
func (d *database) Validate(ctx context.Context) error {
	return ctx.Err()
}

func (d *database) GetRepo() remotestore.Backend {
	return d.store
}

func (d *database) Close() error {
	return d.db.Close()
}
