package remotestore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func newTestNamespace(t *testing.T) (*remotestore.Namespace, *memory.Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := memory.New(memory.WithClock(clock.Now))
	ns := remotestore.NewNamespace(store, remotestore.WithClock(clock.Now))
	return ns, store, clock
}

func putText(t *testing.T, ns *remotestore.Namespace, owner, path, content string) remotestore.StorageObject {
	t.Helper()
	obj, err := ns.Put(context.Background(), remotestore.StorageObject{
		Owner:       owner,
		Path:        path,
		ContentType: remotestore.DefaultContentType,
		Content:     []byte(content),
		Size:        int64(len(content)),
	})
	require.NoError(t, err)
	return obj
}

func entryNames(l remotestore.Listing) []string {
	names := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		names = append(names, e.Name)
	}
	return names
}

func TestNamespace_PutCreatesAncestors(t *testing.T) {
	ctx := context.Background()
	ns, store, clock := newTestNamespace(t)

	obj := putText(t, ns, "jimmy", "tasks/home/laundry", "fold")
	assert.Equal(t, clock.Now(), obj.LastModified)

	for _, dir := range []string{"tasks/home", "tasks", ""} {
		node, err := store.GetDirectory(ctx, "jimmy", dir)
		require.NoError(t, err, "directory %q", dir)
		assert.Equal(t, obj.LastModified, node.LastModified, "directory %q", dir)
	}

	root, err := ns.List(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/"}, entryNames(root))
	assert.True(t, root.Entries[0].IsDir)
	assert.Equal(t, obj.LastModified, root.LastModified)

	home, err := ns.List(ctx, "jimmy", "tasks/home")
	require.NoError(t, err)
	require.Len(t, home.Entries, 1)
	assert.Equal(t, "laundry", home.Entries[0].Name)
	assert.False(t, home.Entries[0].IsDir)
}

func TestNamespace_PutRefreshesAncestors(t *testing.T) {
	ctx := context.Background()
	ns, store, clock := newTestNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/laundry", "fold")
	putText(t, ns, "jimmy", "tasks/work", "email")

	clock.Advance(time.Minute)
	later := putText(t, ns, "jimmy", "tasks/home/dishes", "wash")

	for _, dir := range []string{"tasks/home", "tasks", ""} {
		node, err := store.GetDirectory(ctx, "jimmy", dir)
		require.NoError(t, err)
		assert.Equal(t, later.LastModified, node.LastModified, "directory %q", dir)
	}

	tasks, err := ns.List(ctx, "jimmy", "tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"home/", "work"}, entryNames(tasks))
}

func TestNamespace_OverwriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ns, _, clock := newTestNamespace(t)

	putText(t, ns, "jimmy", "notes/a", "one")
	clock.Advance(time.Second)
	second := putText(t, ns, "jimmy", "notes/a", "two")

	listing, err := ns.List(ctx, "jimmy", "notes")
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, second.LastModified, listing.Entries[0].LastModified)
}

func TestNamespace_DeletePrunesEmptyAncestors(t *testing.T) {
	ctx := context.Background()
	ns, store, clock := newTestNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/laundry", "fold")
	clock.Advance(time.Minute)

	require.NoError(t, ns.Delete(ctx, "jimmy", "tasks/home/laundry", ns.Now()))

	for _, dir := range []string{"tasks/home", "tasks", ""} {
		_, err := store.GetDirectory(ctx, "jimmy", dir)
		assert.ErrorIs(t, err, remotestore.ErrNotFound, "directory %q", dir)
	}

	root, err := ns.List(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Empty(t, root.Entries)
	assert.True(t, root.LastModified.IsZero())
}

func TestNamespace_DeleteRefreshesRemainingAncestors(t *testing.T) {
	ctx := context.Background()
	ns, store, clock := newTestNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/laundry", "fold")
	before := putText(t, ns, "jimmy", "tasks/work", "email")

	deletedAt := clock.Advance(time.Minute)
	require.NoError(t, ns.Delete(ctx, "jimmy", "tasks/home/laundry", ns.Now()))

	_, err := store.GetDirectory(ctx, "jimmy", "tasks/home")
	assert.ErrorIs(t, err, remotestore.ErrNotFound)

	for _, dir := range []string{"tasks", ""} {
		node, err := store.GetDirectory(ctx, "jimmy", dir)
		require.NoError(t, err, "directory %q", dir)
		assert.Equal(t, deletedAt, node.LastModified, "directory %q", dir)
		assert.True(t, node.LastModified.After(before.LastModified), "directory %q", dir)
	}

	tasks, err := ns.List(ctx, "jimmy", "tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, entryNames(tasks))
}

func TestNamespace_DeleteKeepsNonEmptyParent(t *testing.T) {
	ctx := context.Background()
	ns, store, clock := newTestNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/laundry", "fold")
	putText(t, ns, "jimmy", "tasks/home/dishes", "wash")

	deletedAt := clock.Advance(time.Minute)
	require.NoError(t, ns.Delete(ctx, "jimmy", "tasks/home/laundry", ns.Now()))

	node, err := store.GetDirectory(ctx, "jimmy", "tasks/home")
	require.NoError(t, err)
	assert.Equal(t, deletedAt, node.LastModified)

	home, err := ns.List(ctx, "jimmy", "tasks/home")
	require.NoError(t, err)
	assert.Equal(t, []string{"dishes"}, entryNames(home))
}

func TestNamespace_DeleteMissingObject(t *testing.T) {
	ns, _, _ := newTestNamespace(t)

	err := ns.Delete(context.Background(), "jimmy", "tasks/nothing", ns.Now())
	assert.ErrorIs(t, err, remotestore.ErrNotFound)
}

func TestNamespace_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	ns, _, _ := newTestNamespace(t)

	putText(t, ns, "jimmy", "tasks/a", "1")
	putText(t, ns, "kim", "photos/b", "2")

	jimmy, err := ns.List(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/"}, entryNames(jimmy))

	kim, err := ns.List(ctx, "kim", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"photos/"}, entryNames(kim))

	require.NoError(t, ns.Delete(ctx, "kim", "photos/b", ns.Now()))

	jimmy, err = ns.List(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/"}, entryNames(jimmy))
}

func TestNamespace_ListSorted(t *testing.T) {
	ctx := context.Background()
	ns, _, _ := newTestNamespace(t)

	for _, p := range []string{"docs/zeta", "docs/alpha", "docs/mid/x", "docs/Beta"} {
		putText(t, ns, "jimmy", p, p)
	}

	listing, err := ns.List(ctx, "jimmy", "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", listing.Directory)
	assert.Equal(t, []string{"Beta", "alpha", "mid/", "zeta"}, entryNames(listing))
}

func TestNamespace_ListMissingDirectory(t *testing.T) {
	ns, _, _ := newTestNamespace(t)

	listing, err := ns.List(context.Background(), "jimmy", "nowhere")
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)
	assert.True(t, listing.LastModified.IsZero())
}

func TestNamespace_WalkConcurrency(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.New(memory.WithClock(clock.Now))
	ns := remotestore.NewNamespace(store,
		remotestore.WithClock(clock.Now),
		remotestore.WithWalkConcurrency(1),
		remotestore.WithWalkConcurrency(0),
	)

	putText(t, ns, "jimmy", "a/b/c/d/e/f", "deep")

	for _, dir := range remotestore.Ancestors("a/b/c/d/e/f") {
		_, err := store.GetDirectory(ctx, "jimmy", dir)
		assert.NoError(t, err, "directory %q", dir)
	}
}

func TestNamespace_PutCanceledContext(t *testing.T) {
	ns, _, _ := newTestNamespace(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ns.Put(ctx, remotestore.StorageObject{Owner: "jimmy", Path: "tasks/a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNamespace_Reindex(t *testing.T) {
	ctx := context.Background()
	ns, store, clock := newTestNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/laundry", "fold")
	clock.Advance(time.Minute)
	newest := putText(t, ns, "jimmy", "tasks/work", "email")

	// An interrupted walk: a missing node, a stale timestamp and a leftover node.
	require.NoError(t, store.DeleteDirectory(ctx, "jimmy", "tasks/home"))
	require.NoError(t, store.UpsertDirectory(ctx, remotestore.DirectoryNode{
		Owner: "jimmy", Path: "", LastModified: time.Unix(0, 0).UTC(),
	}))
	require.NoError(t, store.UpsertDirectory(ctx, remotestore.DirectoryNode{
		Owner: "jimmy", Path: "photos", LastModified: clock.Now(),
	}))

	result, err := ns.Reindex(ctx, "jimmy")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Objects)
	assert.Equal(t, 3, result.DirectoriesUpdated)
	assert.Equal(t, 1, result.DirectoriesPruned)

	home, err := store.GetDirectory(ctx, "jimmy", "tasks/home")
	require.NoError(t, err)
	assert.True(t, home.LastModified.Before(newest.LastModified))

	for _, dir := range []string{"tasks", ""} {
		node, err := store.GetDirectory(ctx, "jimmy", dir)
		require.NoError(t, err)
		assert.Equal(t, newest.LastModified, node.LastModified, "directory %q", dir)
	}

	_, err = store.GetDirectory(ctx, "jimmy", "photos")
	assert.ErrorIs(t, err, remotestore.ErrNotFound)

	root, err := ns.List(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/"}, entryNames(root))
}

func TestNamespace_Now(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("x", 3600))}
	ns := remotestore.NewNamespace(memory.New(), remotestore.WithClock(clock.Now))

	now := ns.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, 123000000, now.Nanosecond())
}

// flakyRepo wraps a memory store and fails calls for selected directories.
// The maps are set up before a walk starts and only read during it.
type flakyRepo struct {
	*memory.Store
	failUpsert map[string]bool
	failFind   map[string]bool
	failDelete map[string]bool
}

var errConnReset = fmt.Errorf("%w: connection reset", remotestore.ErrBackingStore)

func (r *flakyRepo) UpsertDirectory(ctx context.Context, node remotestore.DirectoryNode) error {
	if r.failUpsert[node.Path] {
		return errConnReset
	}
	return r.Store.UpsertDirectory(ctx, node)
}

func (r *flakyRepo) FindByTag(ctx context.Context, owner string, tag remotestore.Tag) ([]remotestore.IndexEntry, error) {
	if tag.Name == remotestore.TagDirectory && r.failFind[tag.Value] {
		return nil, errConnReset
	}
	return r.Store.FindByTag(ctx, owner, tag)
}

func (r *flakyRepo) DeleteDirectory(ctx context.Context, owner, path string) error {
	if r.failDelete[path] {
		return errConnReset
	}
	return r.Store.DeleteDirectory(ctx, owner, path)
}

// newFlakyNamespace walks one ancestor at a time so the step that fails is
// always preceded by the same completed steps.
func newFlakyNamespace(t *testing.T) (*remotestore.Namespace, *flakyRepo, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	repo := &flakyRepo{Store: memory.New(memory.WithClock(clock.Now))}
	ns := remotestore.NewNamespace(repo, remotestore.WithClock(clock.Now), remotestore.WithWalkConcurrency(1))
	return ns, repo, clock
}

func assertDirectories(t *testing.T, store *memory.Store, present, absent []string) {
	t.Helper()
	ctx := context.Background()
	for _, dir := range present {
		_, err := store.GetDirectory(ctx, "jimmy", dir)
		assert.NoError(t, err, "directory %q should exist", dir)
	}
	for _, dir := range absent {
		_, err := store.GetDirectory(ctx, "jimmy", dir)
		assert.ErrorIs(t, err, remotestore.ErrNotFound, "directory %q should not exist", dir)
	}
}

func TestNamespace_PutAncestorFailureKeepsCompletedSteps(t *testing.T) {
	ctx := context.Background()
	ns, repo, clock := newFlakyNamespace(t)

	repo.failUpsert = map[string]bool{"tasks": true}
	_, err := ns.Put(ctx, remotestore.StorageObject{Owner: "jimmy", Path: "tasks/home/laundry", Content: []byte("fold")})
	require.ErrorIs(t, err, remotestore.ErrBackingStore)

	_, err = repo.GetObject(ctx, "jimmy", "tasks/home/laundry")
	assert.NoError(t, err, "object write is not rolled back")
	assertDirectories(t, repo.Store, []string{"tasks/home"}, []string{"tasks", ""})

	repo.failUpsert = nil
	clock.Advance(time.Minute)
	healed := putText(t, ns, "jimmy", "tasks/home/dishes", "wash")

	for _, dir := range []string{"tasks/home", "tasks", ""} {
		node, err := repo.GetDirectory(ctx, "jimmy", dir)
		require.NoError(t, err, "directory %q", dir)
		assert.Equal(t, healed.LastModified, node.LastModified, "directory %q", dir)
	}

	root, err := ns.List(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/"}, entryNames(root))
}

func TestNamespace_DeleteFindFailureStopsPrune(t *testing.T) {
	ctx := context.Background()
	ns, repo, clock := newFlakyNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/trash", "x")
	clock.Advance(time.Minute)

	repo.failFind = map[string]bool{"tasks": true}
	err := ns.Delete(ctx, "jimmy", "tasks/home/trash", ns.Now())
	require.ErrorIs(t, err, remotestore.ErrBackingStore)

	_, err = repo.GetObject(ctx, "jimmy", "tasks/home/trash")
	assert.ErrorIs(t, err, remotestore.ErrNotFound)
	assertDirectories(t, repo.Store, []string{"tasks", ""}, []string{"tasks/home"})

	repo.failFind = nil
	clock.Advance(time.Minute)
	putText(t, ns, "jimmy", "tasks/new", "y")

	tasks, err := ns.List(ctx, "jimmy", "tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, entryNames(tasks))
}

func TestNamespace_DeletePruneFailureLeavesStaleParent(t *testing.T) {
	ctx := context.Background()
	ns, repo, clock := newFlakyNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/trash", "x")
	clock.Advance(time.Minute)

	repo.failDelete = map[string]bool{"tasks": true}
	err := ns.Delete(ctx, "jimmy", "tasks/home/trash", ns.Now())
	require.ErrorIs(t, err, remotestore.ErrBackingStore)

	assertDirectories(t, repo.Store, []string{"tasks", ""}, []string{"tasks/home"})

	repo.failDelete = nil
	healedAt := clock.Advance(time.Minute)
	putText(t, ns, "jimmy", "tasks/home/again", "z")

	assertDirectories(t, repo.Store, []string{"tasks/home", "tasks", ""}, nil)
	node, err := repo.GetDirectory(ctx, "jimmy", "tasks")
	require.NoError(t, err)
	assert.Equal(t, healedAt, node.LastModified)
}

func TestNamespace_DeleteRefreshFailureKeepsLowerRefreshes(t *testing.T) {
	ctx := context.Background()
	ns, repo, clock := newFlakyNamespace(t)

	putText(t, ns, "jimmy", "tasks/home/trash", "x")
	before := putText(t, ns, "jimmy", "tasks/keep", "y")
	deletedAt := clock.Advance(time.Minute)

	repo.failUpsert = map[string]bool{"": true}
	err := ns.Delete(ctx, "jimmy", "tasks/home/trash", ns.Now())
	require.ErrorIs(t, err, remotestore.ErrBackingStore)

	assertDirectories(t, repo.Store, []string{"tasks", ""}, []string{"tasks/home"})

	tasks, err := repo.GetDirectory(ctx, "jimmy", "tasks")
	require.NoError(t, err)
	assert.Equal(t, deletedAt, tasks.LastModified)

	root, err := repo.GetDirectory(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Equal(t, before.LastModified, root.LastModified, "root keeps its old timestamp")

	repo.failUpsert = nil
	healed := putText(t, ns, "jimmy", "tasks/keep", "y2")

	root, err = repo.GetDirectory(ctx, "jimmy", "")
	require.NoError(t, err)
	assert.Equal(t, healed.LastModified, root.LastModified)
}
