// Package filesystem stores binary payloads as files under an os.Root and
// walks local directory trees for bulk import. Writes are atomic: content goes
// to a temp file that is renamed into place.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sagarc03/remotestore"
)

// Store implements remotestore.BlobStore.
//
// A payload for (owner, path) lives at owner/xx/<sha256(path)>, where xx is
// the first byte of the hash. Hashing keeps a file at "a" and one at "a/b"
// from colliding on disk and bounds file name length.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// BlobPath returns the root-relative file name of the payload for (owner, path).
func BlobPath(owner, path string) string {
	sum := sha256.Sum256([]byte(path))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(owner, name[:2], name)
}

func (s *Store) location(owner, path string) (string, error) {
	if !remotestore.IsValidOwner(owner) {
		return "", fmt.Errorf("%w: invalid owner %q", remotestore.ErrInvalidInput, owner)
	}
	if !remotestore.IsValidPath(path) {
		return "", fmt.Errorf("%w: invalid path %q", remotestore.ErrInvalidInput, path)
	}
	return BlobPath(owner, path), nil
}

// Get opens a payload for reading. Returns remotestore.ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, owner, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := s.location(owner, path)
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}

	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, remotestore.ErrNotFound
		}
		return nil, fmt.Errorf("get blob: %w: %w", remotestore.ErrBackingStore, err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically replaces the payload for (owner, path) and returns the
// number of bytes written. The operation respects context cancellation.
func (s *Store) Write(ctx context.Context, owner, path string, content io.Reader) (int64, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	name, err := s.location(owner, path)
	if err != nil {
		return 0, fmt.Errorf("write blob: %w", err)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return 0, fmt.Errorf("write blob: could not open temp file: %w: %w", remotestore.ErrBackingStore, createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	written, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return 0, fmt.Errorf("write blob: could not copy contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return 0, fmt.Errorf("write blob: could not sync: %w: %w", remotestore.ErrBackingStore, err)
	}

	if err := s.root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return 0, fmt.Errorf("write blob: could not create directories: %w: %w", remotestore.ErrBackingStore, err)
	}

	if err := s.root.Rename(tmpFile, name); err != nil {
		return 0, fmt.Errorf("write blob: rename: %w: %w", remotestore.ErrBackingStore, err)
	}

	success = true
	return written, nil
}

// Delete removes a payload. Returns remotestore.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, owner, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := s.location(owner, path)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}

	if err := s.root.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return remotestore.ErrNotFound
		}
		return fmt.Errorf("delete blob: %w: %w", remotestore.ErrBackingStore, err)
	}
	return nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
