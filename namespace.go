package remotestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultWalkConcurrency bounds concurrent ancestor upserts within one walk.
const DefaultWalkConcurrency = 4

// Namespace is the namespace index engine. It holds no mutable state of its
// own; every fact lives in the repo.
type Namespace struct {
	repo            NamespaceRepo
	clock           func() time.Time
	walkConcurrency int
	logger          *slog.Logger
}

type NamespaceOption func(*Namespace)

// WithClock sets the source of delete timestamps.
func WithClock(clock func() time.Time) NamespaceOption {
	return func(n *Namespace) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithWalkConcurrency bounds concurrent ancestor upserts. Values below 1 are ignored.
func WithWalkConcurrency(limit int) NamespaceOption {
	return func(n *Namespace) {
		if limit > 0 {
			n.walkConcurrency = limit
		}
	}
}

func WithLogger(logger *slog.Logger) NamespaceOption {
	return func(n *Namespace) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func NewNamespace(repo NamespaceRepo, opts ...NamespaceOption) *Namespace {
	n := &Namespace{
		repo:            repo,
		clock:           time.Now,
		walkConcurrency: DefaultWalkConcurrency,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Now returns the engine clock in UTC at millisecond precision, the resolution
// timestamps are stored and listed at.
func (n *Namespace) Now() time.Time {
	return n.clock().UTC().Truncate(time.Millisecond)
}

// Put writes obj and then upserts every ancestor up to the root with the
// timestamp the store assigned to obj.
//
// Ancestor upserts are independent overwrites and may run concurrently. The
// first failure aborts the rest of the walk; completed upserts stay in place.
func (n *Namespace) Put(ctx context.Context, obj StorageObject) (StorageObject, error) {
	stored, err := n.repo.PutObject(ctx, obj)
	if err != nil {
		return StorageObject{}, fmt.Errorf("namespace put %s: %w", obj.Path, err)
	}

	if err := n.UpsertAncestors(ctx, obj.Owner, Ancestors(obj.Path), stored.LastModified); err != nil {
		return StorageObject{}, fmt.Errorf("namespace put %s: %w", obj.Path, err)
	}

	return stored, nil
}

// UpsertAncestors stamps each directory in ancestors with ts, creating the
// node when missing.
func (n *Namespace) UpsertAncestors(ctx context.Context, owner string, ancestors []string, ts time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.walkConcurrency)

	for _, dir := range ancestors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			node := DirectoryNode{Owner: owner, Path: dir, LastModified: ts}
			if err := n.repo.UpsertDirectory(gctx, node); err != nil {
				return fmt.Errorf("upsert directory %q: %w", dir, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Delete removes the object at path and walks its ancestors: empty ones are
// pruned, and from the first non-empty ancestor up every node is stamped with now.
func (n *Namespace) Delete(ctx context.Context, owner, path string, now time.Time) error {
	if err := n.repo.DeleteObject(ctx, owner, path); err != nil {
		return fmt.Errorf("namespace delete %s: %w", path, err)
	}

	pruned, err := n.PruneAndRefresh(ctx, owner, Ancestors(path), now)
	if err != nil {
		return fmt.Errorf("namespace delete %s: %w", path, err)
	}

	if len(pruned) > 0 {
		n.logger.DebugContext(ctx, "pruned directories", "owner", owner, "path", path, "pruned", pruned)
	}

	return nil
}

// PruneAndRefresh runs the two-phase walk over ancestors, ordered from the
// deleted key's parent to the root. It returns the directories it pruned.
//
// Emptiness is monotonic going upward: once an ancestor has a child, every
// ancestor above it has one too, so the walk never re-checks after switching
// to the refresh phase.
func (n *Namespace) PruneAndRefresh(ctx context.Context, owner string, ancestors []string, now time.Time) ([]string, error) {
	var pruned []string

	for i, dir := range ancestors {
		children, err := n.repo.FindByTag(ctx, owner, DirectoryTag(dir))
		if err != nil {
			return pruned, fmt.Errorf("find children of %q: %w", dir, err)
		}

		if len(children) > 0 {
			if err := n.UpsertAncestors(ctx, owner, ancestors[i:], now); err != nil {
				return pruned, fmt.Errorf("refresh: %w", err)
			}
			return pruned, nil
		}

		if err := n.repo.DeleteDirectory(ctx, owner, dir); err != nil {
			return pruned, fmt.Errorf("prune %q: %w", dir, err)
		}
		pruned = append(pruned, dir)
	}

	return pruned, nil
}

// List returns the immediate children of dir sorted by name. A directory with
// no tagged children yields an empty listing.
func (n *Namespace) List(ctx context.Context, owner, dir string) (Listing, error) {
	entries, err := n.repo.FindByTag(ctx, owner, DirectoryTag(dir))
	if err != nil {
		return Listing{}, fmt.Errorf("namespace list %q: %w", dir, err)
	}

	listing := Listing{
		Directory: dir,
		Entries:   make([]ListingEntry, 0, len(entries)),
	}
	for _, e := range entries {
		listing.Entries = append(listing.Entries, ListingEntry{
			Name:         e.Name(),
			LastModified: e.LastModified,
			IsDir:        e.Kind == KindDirectory,
		})
	}
	slices.SortFunc(listing.Entries, func(a, b ListingEntry) int {
		return strings.Compare(a.Name, b.Name)
	})

	node, err := n.repo.GetDirectory(ctx, owner, dir)
	switch {
	case err == nil:
		listing.LastModified = node.LastModified
	case errors.Is(err, ErrNotFound):
	default:
		return Listing{}, fmt.Errorf("namespace list %q: %w", dir, err)
	}

	return listing, nil
}

// Reindex rebuilds the directory nodes of owner from its objects. Every
// ancestor of an object is stamped with its newest descendant's timestamp and
// directory nodes without descendants are deleted. It repairs the state left
// behind by interrupted walks.
func (n *Namespace) Reindex(ctx context.Context, owner string) (ReindexResult, error) {
	entries, err := n.repo.FindByTag(ctx, owner, OwnerTag(owner))
	if err != nil {
		return ReindexResult{}, fmt.Errorf("reindex %s: %w", owner, err)
	}

	var result ReindexResult
	newest := make(map[string]time.Time)
	existing := make(map[string]struct{})

	for _, e := range entries {
		switch e.Kind {
		case KindObject:
			result.Objects++
			for _, dir := range Ancestors(e.Path) {
				if ts, ok := newest[dir]; !ok || e.LastModified.After(ts) {
					newest[dir] = e.LastModified
				}
			}
		case KindDirectory:
			existing[e.Path] = struct{}{}
		}
	}

	for dir, ts := range newest {
		if err := n.repo.UpsertDirectory(ctx, DirectoryNode{Owner: owner, Path: dir, LastModified: ts}); err != nil {
			return result, fmt.Errorf("reindex %s: upsert directory %q: %w", owner, dir, err)
		}
		result.DirectoriesUpdated++
	}

	for dir := range existing {
		if _, ok := newest[dir]; ok {
			continue
		}
		if err := n.repo.DeleteDirectory(ctx, owner, dir); err != nil {
			return result, fmt.Errorf("reindex %s: prune %q: %w", owner, dir, err)
		}
		result.DirectoriesPruned++
	}

	n.logger.InfoContext(ctx, "reindexed namespace",
		"owner", owner,
		"objects", result.Objects,
		"directories_updated", result.DirectoriesUpdated,
		"directories_pruned", result.DirectoriesPruned,
	)

	return result, nil
}
