package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/config"
	"github.com/sagarc03/remotestore/database"
	"github.com/sagarc03/remotestore/filesystem"
	"github.com/sagarc03/remotestore/s3store"
)

// stack is the wired backend, payload store and service for one command.
type stack struct {
	backend remotestore.Backend
	service *remotestore.Service
	closers []func() error
}

func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openStack connects the configured backend and payload store. The schema
// is migrated when migrate is set and validated in every case.
func openStack(ctx context.Context, cfg *config.Config, migrate bool) (*stack, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s := &stack{closers: []func() error{db.Close}}

	if err := db.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Debug("database migration complete", "type", cfg.Database.Type)
	}

	if err := db.Validate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	s.backend = db.GetRepo()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg.Blob)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, closeBlobs)

	ns := remotestore.NewNamespace(s.backend,
		remotestore.WithWalkConcurrency(cfg.Namespace.WalkConcurrency),
		remotestore.WithLogger(slog.Default()),
	)

	s.service, err = remotestore.NewService(s.backend, blobs, ns, remotestore.ServiceConfig{
		CleanupTimeout: cfg.Server.CleanupTimeout,
		Logger:         slog.Default(),
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create service: %w", err)
	}

	slog.Debug("storage ready", "database", cfg.Database.Type, "blob", cfg.Blob.Type)
	return s, nil
}

// openDatabase connects and validates the backend without a payload store,
// for commands that only touch grants or directory nodes.
func openDatabase(ctx context.Context, cfg *config.Config) (database.Database, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	return db, nil
}

func openBlobStore(ctx context.Context, cfg config.BlobConfig) (remotestore.BlobStore, func() error, error) {
	switch cfg.Type {
	case config.BlobS3:
		store, err := s3store.New(ctx, cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("open s3 store: %w", err)
		}
		return store, func() error { return nil }, nil
	case config.BlobFilesystem:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create blob directory: %w", err)
		}
		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open blob root: %w", err)
		}
		return filesystem.NewFileStorage(root), root.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported blob store type: %q", cfg.Type)
	}
}
