package remotestore

import (
	"context"
	"io"
)

// ObjectRepo persists StorageObjects. Every object carries the index tags
// directory = Parent(path) and owner = Owner.
type ObjectRepo interface {
	// GetObject returns ErrNotFound when no object exists at path.
	GetObject(ctx context.Context, owner, path string) (StorageObject, error)

	// PutObject creates or overwrites the object and returns it with
	// LastModified set by the store.
	PutObject(ctx context.Context, obj StorageObject) (StorageObject, error)

	// DeleteObject returns ErrNotFound when no object exists at path.
	DeleteObject(ctx context.Context, owner, path string) error
}

// DirectoryRepo persists DirectoryNodes. A node is tagged directory =
// Parent(path) unless it is the root.
type DirectoryRepo interface {
	// GetDirectory returns ErrNotFound when no node exists at path.
	GetDirectory(ctx context.Context, owner, path string) (DirectoryNode, error)

	// UpsertDirectory creates the node or overwrites its timestamp.
	UpsertDirectory(ctx context.Context, node DirectoryNode) error

	// DeleteDirectory removes the node. Deleting a missing node is not an error.
	DeleteDirectory(ctx context.Context, owner, path string) error
}

// IndexQuerier answers tag-equality queries for one owner.
//
// A directory tag returns the objects and directory nodes that are immediate
// children of Value. An owner tag returns every object and directory node of
// the owner. Results are unordered; an empty result is not an error.
type IndexQuerier interface {
	FindByTag(ctx context.Context, owner string, tag Tag) ([]IndexEntry, error)
}

// NamespaceRepo is everything the Namespace needs from the backing store.
type NamespaceRepo interface {
	ObjectRepo
	DirectoryRepo
	IndexQuerier
}

// GrantRepo persists ScopeGrants keyed by (owner, token).
type GrantRepo interface {
	GrantResolver

	// PutGrant creates or replaces the grant record.
	PutGrant(ctx context.Context, grant ScopeGrant) error

	// DeleteGrant returns ErrNotFound when no record exists.
	DeleteGrant(ctx context.Context, owner, token string) error

	// ListGrants returns the grants of owner, or of every owner when owner is "".
	ListGrants(ctx context.Context, owner string) ([]ScopeGrant, error)
}

// Backend is a complete backing store.
type Backend interface {
	NamespaceRepo
	GrantRepo
}

// BlobStore holds the raw bytes of binary companions, keyed by owner and
// StorageObject.CompanionPath.
type BlobStore interface {
	// Get returns ErrNotFound when no companion exists. The caller closes the reader.
	Get(ctx context.Context, owner, path string) (io.ReadCloser, error)

	// Write stores content, overwriting any existing companion, and returns the bytes written.
	Write(ctx context.Context, owner, path string, content io.Reader) (int64, error)

	// Delete returns ErrNotFound when no companion exists.
	Delete(ctx context.Context, owner, path string) error
}
