package remotestore

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Index tag names understood by FindByTag.
const (
	TagDirectory = "directory"
	TagOwner     = "owner"
)

// DefaultContentType is stored when a PUT carries no Content-Type.
const DefaultContentType = "text/plain; charset=utf-8"

// StorageObject is a user file. Content is empty when the payload lives in the
// binary companion store.
type StorageObject struct {
	Owner        string    `json:"owner"`
	Path         string    `json:"path"`
	ContentType  string    `json:"content_type"`
	Content      []byte    `json:"-"`
	Binary       bool      `json:"binary"`
	ETag         string    `json:"etag"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Directory returns the value of the object's directory tag.
func (o StorageObject) Directory() string {
	return Parent(o.Path)
}

// CompanionPath names the binary companion of this version of the object.
// Each ETag gets its own companion, so writing a new version never touches
// the bytes an existing record points at.
func (o StorageObject) CompanionPath() string {
	return o.Path + "@" + o.ETag
}

// DirectoryNode is the synthesized metadata for a path prefix that has at least
// one descendant. The root is the empty path and has no parent tag.
type DirectoryNode struct {
	Owner        string    `json:"owner"`
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
}

// Parent returns the value of the node's directory tag. It is meaningless for
// the root.
func (d DirectoryNode) Parent() string {
	return Parent(d.Path)
}

// IsRoot reports whether d is the synthetic root node.
func (d DirectoryNode) IsRoot() bool {
	return d.Path == ""
}

// EntryKind distinguishes objects from directory nodes in index results.
type EntryKind string

const (
	KindObject    EntryKind = "object"
	KindDirectory EntryKind = "directory"
)

// IndexEntry is one key returned by a tag query.
type IndexEntry struct {
	Kind         EntryKind
	Path         string
	LastModified time.Time
}

// Name returns the last segment of the entry path, with a trailing separator
// for directories.
func (e IndexEntry) Name() string {
	if e.Kind == KindDirectory {
		return Leaf(e.Path) + "/"
	}
	return Leaf(e.Path)
}

// Tag is a secondary-index equality predicate.
type Tag struct {
	Name  string
	Value string
}

// DirectoryTag selects every key tagged directory = dir.
func DirectoryTag(dir string) Tag {
	return Tag{Name: TagDirectory, Value: dir}
}

// OwnerTag selects every key tagged owner = owner.
func OwnerTag(owner string) Tag {
	return Tag{Name: TagOwner, Value: owner}
}

// ListingEntry is one immediate child of a listed directory.
type ListingEntry struct {
	Name         string
	LastModified time.Time
	IsDir        bool
}

// Listing holds the immediate children of a directory. LastModified is zero
// when the directory node does not exist.
type Listing struct {
	Directory    string
	LastModified time.Time
	Entries      []ListingEntry
}

// Caller identifies who is making a request against an owner's namespace.
// An empty Token is an anonymous caller.
type Caller struct {
	Owner string
	Token string
}

// PutObject describes an incoming write.
type PutObject struct {
	Path        string
	ContentType string
	// IfMatch, when set, must equal the current ETag ("*" matches any existing object).
	IfMatch string
}

// ReindexResult summarizes a namespace rebuild.
type ReindexResult struct {
	Objects            int
	DirectoriesUpdated int
	DirectoriesPruned  int
}

// Tables holds configurable table names for the SQL backends.
// This allows multi-tenant deployments to use different table names.
type Tables struct {
	Objects     string `mapstructure:"objects" validate:"required"`
	Directories string `mapstructure:"directories" validate:"required"`
	Grants      string `mapstructure:"grants" validate:"required"`
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Objects:     "remotestore_objects",
		Directories: "remotestore_directories",
		Grants:      "remotestore_grants",
	}
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		kind  string
		value string
	}{
		{"objects", t.Objects},
		{"directories", t.Directories},
		{"grants", t.Grants},
	}

	seen := make(map[string]string, len(names))
	for _, n := range names {
		if n.value == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", n.kind)
		}
		if !IsValidTableName(n.value) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.kind, n.value)
		}
		if other, ok := seen[n.value]; ok {
			return fmt.Errorf("validate tables: %s and %s share table name %s", other, n.kind, n.value)
		}
		seen[n.value] = n.kind
	}

	return nil
}

var errEmptyOwner = errors.New("owner cannot be empty")
