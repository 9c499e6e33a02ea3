// Package memory implements remotestore.Backend in process memory. Tag
// queries are served from an explicit index that keys add themselves to and
// remove themselves from, the same way the persistent backends do it.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sagarc03/remotestore"
)

type key struct {
	owner string
	path  string
}

type entryRef struct {
	kind remotestore.EntryKind
	path string
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	clock   func() time.Time
	objects map[key]remotestore.StorageObject
	dirs    map[key]remotestore.DirectoryNode
	grants  map[key]remotestore.ScopeGrant
	// index[owner][directory] holds the keys tagged directory = directory.
	index map[string]map[string]map[entryRef]struct{}
}

type Option func(*Store)

// WithClock sets the source of object timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		clock:   time.Now,
		objects: make(map[key]remotestore.StorageObject),
		dirs:    make(map[key]remotestore.DirectoryNode),
		grants:  make(map[key]remotestore.ScopeGrant),
		index:   make(map[string]map[string]map[entryRef]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func (s *Store) tag(owner, dir string, ref entryRef) {
	dirs, ok := s.index[owner]
	if !ok {
		dirs = make(map[string]map[entryRef]struct{})
		s.index[owner] = dirs
	}
	refs, ok := dirs[dir]
	if !ok {
		refs = make(map[entryRef]struct{})
		dirs[dir] = refs
	}
	refs[ref] = struct{}{}
}

func (s *Store) untag(owner, dir string, ref entryRef) {
	refs := s.index[owner][dir]
	delete(refs, ref)
	if len(refs) == 0 {
		delete(s.index[owner], dir)
	}
	if len(s.index[owner]) == 0 {
		delete(s.index, owner)
	}
}

func (s *Store) GetObject(ctx context.Context, owner, path string) (remotestore.StorageObject, error) {
	if err := ctx.Err(); err != nil {
		return remotestore.StorageObject{}, fmt.Errorf("get object: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key{owner, path}]
	if !ok {
		return remotestore.StorageObject{}, remotestore.ErrNotFound
	}
	obj.Content = slices.Clone(obj.Content)
	return obj, nil
}

func (s *Store) PutObject(ctx context.Context, obj remotestore.StorageObject) (remotestore.StorageObject, error) {
	if err := ctx.Err(); err != nil {
		return remotestore.StorageObject{}, fmt.Errorf("put object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj.Content = slices.Clone(obj.Content)
	obj.LastModified = s.now()
	s.objects[key{obj.Owner, obj.Path}] = obj
	s.tag(obj.Owner, obj.Directory(), entryRef{remotestore.KindObject, obj.Path})

	obj.Content = slices.Clone(obj.Content)
	return obj, nil
}

func (s *Store) DeleteObject(ctx context.Context, owner, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, path}
	if _, ok := s.objects[k]; !ok {
		return fmt.Errorf("delete object: %w", remotestore.ErrNotFound)
	}
	delete(s.objects, k)
	s.untag(owner, remotestore.Parent(path), entryRef{remotestore.KindObject, path})
	return nil
}

func (s *Store) GetDirectory(ctx context.Context, owner, path string) (remotestore.DirectoryNode, error) {
	if err := ctx.Err(); err != nil {
		return remotestore.DirectoryNode{}, fmt.Errorf("get directory: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.dirs[key{owner, path}]
	if !ok {
		return remotestore.DirectoryNode{}, remotestore.ErrNotFound
	}
	return node, nil
}

func (s *Store) UpsertDirectory(ctx context.Context, node remotestore.DirectoryNode) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("upsert directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node.LastModified = node.LastModified.UTC()
	s.dirs[key{node.Owner, node.Path}] = node
	if !node.IsRoot() {
		s.tag(node.Owner, node.Parent(), entryRef{remotestore.KindDirectory, node.Path})
	}
	return nil
}

func (s *Store) DeleteDirectory(ctx context.Context, owner, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dirs, key{owner, path})
	if path != "" {
		s.untag(owner, remotestore.Parent(path), entryRef{remotestore.KindDirectory, path})
	}
	return nil
}

func (s *Store) FindByTag(ctx context.Context, owner string, tag remotestore.Tag) ([]remotestore.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("find by tag: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch tag.Name {
	case remotestore.TagDirectory:
		refs := s.index[owner][tag.Value]
		entries := make([]remotestore.IndexEntry, 0, len(refs))
		for ref := range refs {
			entries = append(entries, s.entry(owner, ref))
		}
		return entries, nil

	case remotestore.TagOwner:
		if tag.Value != owner {
			return nil, nil
		}
		var entries []remotestore.IndexEntry
		for k, obj := range s.objects {
			if k.owner == owner {
				entries = append(entries, remotestore.IndexEntry{Kind: remotestore.KindObject, Path: obj.Path, LastModified: obj.LastModified})
			}
		}
		for k, node := range s.dirs {
			if k.owner == owner {
				entries = append(entries, remotestore.IndexEntry{Kind: remotestore.KindDirectory, Path: node.Path, LastModified: node.LastModified})
			}
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("find by tag: %w: unknown tag %q", remotestore.ErrInvalidInput, tag.Name)
	}
}

func (s *Store) entry(owner string, ref entryRef) remotestore.IndexEntry {
	e := remotestore.IndexEntry{Kind: ref.kind, Path: ref.path}
	if ref.kind == remotestore.KindObject {
		e.LastModified = s.objects[key{owner, ref.path}].LastModified
	} else {
		e.LastModified = s.dirs[key{owner, ref.path}].LastModified
	}
	return e
}

func (s *Store) ResolveGrant(ctx context.Context, owner, token string) (remotestore.ScopeGrant, error) {
	if err := ctx.Err(); err != nil {
		return remotestore.ScopeGrant{}, fmt.Errorf("resolve grant: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grants[key{owner, token}]
	if !ok {
		return remotestore.ScopeGrant{}, remotestore.ErrNotFound
	}
	g.Grants = slices.Clone(g.Grants)
	return g, nil
}

func (s *Store) PutGrant(ctx context.Context, grant remotestore.ScopeGrant) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put grant: %w", err)
	}
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("put grant: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grant.Grants = slices.Clone(grant.Grants)
	s.grants[key{grant.Owner, grant.Token}] = grant
	return nil
}

func (s *Store) DeleteGrant(ctx context.Context, owner, token string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, token}
	if _, ok := s.grants[k]; !ok {
		return fmt.Errorf("delete grant: %w", remotestore.ErrNotFound)
	}
	delete(s.grants, k)
	return nil
}

func (s *Store) ListGrants(ctx context.Context, owner string) ([]remotestore.ScopeGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	grants := make([]remotestore.ScopeGrant, 0)
	for k, g := range s.grants {
		if owner == "" || k.owner == owner {
			g.Grants = slices.Clone(g.Grants)
			grants = append(grants, g)
		}
	}
	slices.SortFunc(grants, compareGrants)
	return grants, nil
}

func compareGrants(a, b remotestore.ScopeGrant) int {
	return cmp.Or(strings.Compare(a.Owner, b.Owner), strings.Compare(a.Token, b.Token))
}
