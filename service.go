package remotestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	CleanupTimeout time.Duration // Timeout for companion cleanup after a failed write (default: 30s)
	Logger         *slog.Logger
}

// Service is the object access layer. Each operation authorizes the caller on
// the path's category and then runs the namespace engine. The Import, Remove
// and Reindex variants skip authorization and are meant for administrative
// tooling.
type Service struct {
	backend        Backend
	blobs          BlobStore
	ns             *Namespace
	auth           *Authorizer
	cleanupTimeout time.Duration
	logger         *slog.Logger
}

func NewService(backend Backend, blobs BlobStore, ns *Namespace, cfg ServiceConfig) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("new service: %w: backend is required", ErrInvalidInput)
	}
	if blobs == nil {
		return nil, fmt.Errorf("new service: %w: blob store is required", ErrInvalidInput)
	}
	if ns == nil {
		ns = NewNamespace(backend)
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		backend:        backend,
		blobs:          blobs,
		ns:             ns,
		auth:           NewAuthorizer(backend),
		cleanupTimeout: cleanupTimeout,
		logger:         logger,
	}, nil
}

// Get returns an object and a reader over its payload. The caller closes the reader.
//
// Error types returned:
//   - ErrInvalidInput: malformed owner or path
//   - ErrForbidden: the caller may not read the path's category
//   - ErrNotFound: no object at path
//   - ErrBackingStore: the store failed
func (s *Service) Get(ctx context.Context, caller Caller, path string) (StorageObject, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return StorageObject{}, nil, fmt.Errorf("get object: %w", err)
	}

	if err := validateTarget(caller.Owner, path); err != nil {
		return StorageObject{}, nil, fmt.Errorf("get object: %w", err)
	}

	if err := s.auth.Authorize(ctx, caller.Owner, caller.Token, Category(path), PermissionRead); err != nil {
		return StorageObject{}, nil, fmt.Errorf("get object: %w", err)
	}

	obj, err := s.backend.GetObject(ctx, caller.Owner, path)
	if err != nil {
		return StorageObject{}, nil, fmt.Errorf("get object %s: %w", path, err)
	}

	if !obj.Binary {
		return obj, io.NopCloser(bytes.NewReader(obj.Content)), nil
	}

	rc, err := s.blobs.Get(ctx, caller.Owner, obj.CompanionPath())
	if err != nil {
		return StorageObject{}, nil, fmt.Errorf("get object %s: companion: %w", path, err)
	}

	return obj, rc, nil
}

// List returns the immediate children of dir, given without its trailing
// separator ("" is the root). Authorization uses the category of "dir/".
func (s *Service) List(ctx context.Context, caller Caller, dir string) (Listing, error) {
	if err := ctx.Err(); err != nil {
		return Listing{}, fmt.Errorf("list directory: %w", err)
	}

	if err := validateOwner(caller.Owner); err != nil {
		return Listing{}, fmt.Errorf("list directory: %w", err)
	}
	if !IsValidDirectory(dir) {
		return Listing{}, fmt.Errorf("list directory: %w: invalid directory %q", ErrInvalidInput, dir)
	}

	if err := s.auth.Authorize(ctx, caller.Owner, caller.Token, Category(dir+"/"), PermissionRead); err != nil {
		return Listing{}, fmt.Errorf("list directory: %w", err)
	}

	listing, err := s.ns.List(ctx, caller.Owner, dir)
	if err != nil {
		return Listing{}, fmt.Errorf("list directory: %w", err)
	}

	return listing, nil
}

// Put authorizes a read-write on the path's category and stores the body.
//
// Error types returned:
//   - ErrInvalidInput: malformed owner or path
//   - ErrForbidden: the caller may not write the path's category
//   - ErrInvalidContent: a JSON content type with a body that does not parse
//   - ErrPreconditionFailed: IfMatch does not match the current object
//   - ErrBackingStore: the store failed; completed ancestor steps are not rolled back
func (s *Service) Put(ctx context.Context, caller Caller, obj PutObject, body io.Reader) (StorageObject, error) {
	if err := ctx.Err(); err != nil {
		return StorageObject{}, fmt.Errorf("put object: %w", err)
	}

	if err := validateTarget(caller.Owner, obj.Path); err != nil {
		return StorageObject{}, fmt.Errorf("put object: %w", err)
	}

	if err := s.auth.Authorize(ctx, caller.Owner, caller.Token, Category(obj.Path), PermissionReadWrite); err != nil {
		return StorageObject{}, fmt.Errorf("put object: %w", err)
	}

	return s.put(ctx, caller.Owner, obj, body)
}

// Import stores an object without authorization.
func (s *Service) Import(ctx context.Context, owner string, obj PutObject, body io.Reader) (StorageObject, error) {
	if err := ctx.Err(); err != nil {
		return StorageObject{}, fmt.Errorf("import object: %w", err)
	}

	if err := validateTarget(owner, obj.Path); err != nil {
		return StorageObject{}, fmt.Errorf("import object: %w", err)
	}

	return s.put(ctx, owner, obj, body)
}

func (s *Service) put(ctx context.Context, owner string, obj PutObject, body io.Reader) (StorageObject, error) {
	data, err := readBody(body)
	if err != nil {
		return StorageObject{}, fmt.Errorf("put object %s: %w", obj.Path, err)
	}

	content, err := NormalizeContent(obj.ContentType, data)
	if err != nil {
		return StorageObject{}, fmt.Errorf("put object %s: %w", obj.Path, err)
	}

	prev, err := s.backend.GetObject(ctx, owner, obj.Path)
	prevExists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return StorageObject{}, fmt.Errorf("put object %s: %w", obj.Path, err)
	}

	if obj.IfMatch != "" && !matchesETag(obj.IfMatch, prev, prevExists) {
		return StorageObject{}, fmt.Errorf("put object %s: %w", obj.Path, ErrPreconditionFailed)
	}

	sum := sha256.Sum256(content.Data)
	record := StorageObject{
		Owner:       owner,
		Path:        obj.Path,
		ContentType: content.ContentType,
		Binary:      content.Binary,
		ETag:        hex.EncodeToString(sum[:]),
		Size:        int64(len(content.Data)),
	}

	prevCompanion := prevExists && prev.Binary
	sameCompanion := prevCompanion && content.Binary && prev.ETag == record.ETag

	// The record is written after its companion and the previous companion is
	// dropped only once the new record is in place.
	if content.Binary {
		if _, err := s.blobs.Write(ctx, owner, record.CompanionPath(), bytes.NewReader(content.Data)); err != nil {
			return StorageObject{}, fmt.Errorf("put object %s: write companion: %w", obj.Path, err)
		}
	} else {
		record.Content = content.Data
	}

	stored, err := s.ns.Put(ctx, record)
	if err != nil {
		if (content.Binary || prevCompanion) && !sameCompanion {
			s.cleanupOrphan(prev, prevCompanion, record)
		}
		return StorageObject{}, fmt.Errorf("put object %s: %w", obj.Path, err)
	}

	if prevCompanion && !sameCompanion {
		s.removeCompanion(ctx, prev)
	}

	return stored, nil
}

// cleanupOrphan runs after a failed put and removes the companion no stored
// record points at: the new one when the record never landed, the previous
// one when it did and only the ancestor walk failed. It uses a background
// context since the request context may be gone.
func (s *Service) cleanupOrphan(prev StorageObject, prevCompanion bool, record StorageObject) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	current, err := s.backend.GetObject(ctx, record.Owner, record.Path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "orphaned companion kept", "owner", record.Owner, "path", record.Path, "error", err)
		return
	}

	landed := err == nil && current.ETag == record.ETag && current.Binary == record.Binary
	switch {
	case landed && prevCompanion:
		s.removeCompanion(ctx, prev)
	case !landed && record.Binary:
		s.removeCompanion(ctx, record)
	}
}

// removeCompanion deletes the companion of obj. Failures are logged: a
// companion no record points at is never served.
func (s *Service) removeCompanion(ctx context.Context, obj StorageObject) {
	if err := s.blobs.Delete(ctx, obj.Owner, obj.CompanionPath()); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "companion not removed", "owner", obj.Owner, "path", obj.Path, "etag", obj.ETag, "error", err)
	}
}

// Delete authorizes a read-write on the path's category and removes the
// object, its companion and any ancestors left empty.
//
// Error types returned:
//   - ErrInvalidInput: malformed owner or path
//   - ErrForbidden: the caller may not write the path's category
//   - ErrNotFound: no object at path
//   - ErrBackingStore: the store failed
func (s *Service) Delete(ctx context.Context, caller Caller, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if err := validateTarget(caller.Owner, path); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if err := s.auth.Authorize(ctx, caller.Owner, caller.Token, Category(path), PermissionReadWrite); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	return s.delete(ctx, caller.Owner, path)
}

// Remove deletes an object without authorization.
func (s *Service) Remove(ctx context.Context, owner, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}

	if err := validateTarget(owner, path); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}

	return s.delete(ctx, owner, path)
}

func (s *Service) delete(ctx context.Context, owner, path string) error {
	obj, err := s.backend.GetObject(ctx, owner, path)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", path, err)
	}

	nsErr := s.ns.Delete(ctx, owner, path, s.ns.Now())
	if nsErr != nil {
		// The walk may fail after the record is gone; the companion follows it.
		if _, err := s.backend.GetObject(ctx, owner, path); !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete object: %w", nsErr)
		}
	}

	if obj.Binary {
		s.removeCompanion(ctx, obj)
	}

	if nsErr != nil {
		return fmt.Errorf("delete object: %w", nsErr)
	}
	return nil
}

// ListAll returns every object path of owner below dir, depth first, without
// authorization.
func (s *Service) ListAll(ctx context.Context, owner, dir string) ([]string, error) {
	if err := validateOwner(owner); err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	if !IsValidDirectory(dir) {
		return nil, fmt.Errorf("list all: %w: invalid directory %q", ErrInvalidInput, dir)
	}

	var paths []string
	pending := []string{dir}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		listing, err := s.ns.List(ctx, owner, current)
		if err != nil {
			return nil, fmt.Errorf("list all: %w", err)
		}
		for _, e := range listing.Entries {
			child := Join(current, strings.TrimSuffix(e.Name, "/"))
			if e.IsDir {
				pending = append(pending, child)
				continue
			}
			paths = append(paths, child)
		}
	}

	return paths, nil
}

// Reindex rebuilds the directory nodes of owner.
func (s *Service) Reindex(ctx context.Context, owner string) (ReindexResult, error) {
	if err := validateOwner(owner); err != nil {
		return ReindexResult{}, fmt.Errorf("reindex: %w", err)
	}
	return s.ns.Reindex(ctx, owner)
}

// readBody reads the whole payload. Size limits belong to the transport.
func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return io.ReadAll(body)
}

func matchesETag(ifMatch string, current StorageObject, exists bool) bool {
	if !exists {
		return false
	}
	if ifMatch == "*" {
		return true
	}
	for _, candidate := range strings.Split(ifMatch, ",") {
		candidate = strings.Trim(strings.TrimSpace(candidate), `"`)
		if candidate == current.ETag {
			return true
		}
	}
	return false
}

func validateTarget(owner, path string) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if !IsValidPath(path) {
		return fmt.Errorf("%w: invalid path %q", ErrInvalidInput, path)
	}
	return nil
}
