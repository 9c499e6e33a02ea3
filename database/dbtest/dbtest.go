// Package dbtest holds the behavior every remotestore.Backend must share.
// Backend packages run it from their own tests against a fresh instance.
package dbtest

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/sagarc03/remotestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty backend. It registers its own cleanup on t.
type Factory func(t *testing.T) remotestore.Backend

// Run exercises objects, directory nodes, tag queries and grants.
func Run(t *testing.T, newBackend Factory) {
	t.Run("objects", func(t *testing.T) { testObjects(t, newBackend) })
	t.Run("directories", func(t *testing.T) { testDirectories(t, newBackend) })
	t.Run("find by tag", func(t *testing.T) { testFindByTag(t, newBackend) })
	t.Run("grants", func(t *testing.T) { testGrants(t, newBackend) })
}

func textObject(owner, path, body string) remotestore.StorageObject {
	return remotestore.StorageObject{
		Owner:       owner,
		Path:        path,
		ContentType: remotestore.DefaultContentType,
		Content:     []byte(body),
		ETag:        "etag-" + body,
		Size:        int64(len(body)),
	}
}

func testObjects(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.GetObject(ctx, "alice", "nope.txt")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		b := newBackend(t)
		before := time.Now().Add(-time.Second)

		stored, err := b.PutObject(ctx, textObject("alice", "notes/a.txt", "hello"))
		require.NoError(t, err)

		assert.Equal(t, time.UTC, stored.LastModified.Location())
		assert.True(t, stored.LastModified.After(before), "timestamp is stamped by the store")
		assert.Equal(t, stored.LastModified, stored.LastModified.Truncate(time.Millisecond))

		got, err := b.GetObject(ctx, "alice", "notes/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Owner)
		assert.Equal(t, "notes/a.txt", got.Path)
		assert.Equal(t, remotestore.DefaultContentType, got.ContentType)
		assert.Equal(t, []byte("hello"), got.Content)
		assert.False(t, got.Binary)
		assert.Equal(t, "etag-hello", got.ETag)
		assert.Equal(t, int64(5), got.Size)
		assert.True(t, stored.LastModified.Equal(got.LastModified))
	})

	t.Run("binary object keeps no content", func(t *testing.T) {
		b := newBackend(t)
		obj := remotestore.StorageObject{
			Owner:       "alice",
			Path:        "pics/cat.png",
			ContentType: "image/png",
			Binary:      true,
			ETag:        "abc",
			Size:        2048,
		}

		_, err := b.PutObject(ctx, obj)
		require.NoError(t, err)

		got, err := b.GetObject(ctx, "alice", "pics/cat.png")
		require.NoError(t, err)
		assert.True(t, got.Binary)
		assert.Empty(t, got.Content)
		assert.Equal(t, int64(2048), got.Size)
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		b := newBackend(t)

		_, err := b.PutObject(ctx, textObject("alice", "a.txt", "one"))
		require.NoError(t, err)
		_, err = b.PutObject(ctx, textObject("alice", "a.txt", "two"))
		require.NoError(t, err)

		got, err := b.GetObject(ctx, "alice", "a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got.Content)
		assert.Equal(t, "etag-two", got.ETag)

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag(""))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("owners are isolated", func(t *testing.T) {
		b := newBackend(t)

		_, err := b.PutObject(ctx, textObject("alice", "a.txt", "mine"))
		require.NoError(t, err)

		_, err = b.GetObject(ctx, "bob", "a.txt")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		b := newBackend(t)

		err := b.DeleteObject(ctx, "alice", "a.txt")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)

		_, err = b.PutObject(ctx, textObject("alice", "docs/a.txt", "x"))
		require.NoError(t, err)

		require.NoError(t, b.DeleteObject(ctx, "alice", "docs/a.txt"))

		_, err = b.GetObject(ctx, "alice", "docs/a.txt")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag("docs"))
		require.NoError(t, err)
		assert.Empty(t, entries, "deleted object leaves the index")
	})
}

func testDirectories(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get missing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.GetDirectory(ctx, "alice", "docs")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		b := newBackend(t)

		require.NoError(t, b.UpsertDirectory(ctx, remotestore.DirectoryNode{Owner: "alice", Path: "docs/work", LastModified: ts}))

		got, err := b.GetDirectory(ctx, "alice", "docs/work")
		require.NoError(t, err)
		assert.True(t, ts.Equal(got.LastModified))

		later := ts.Add(time.Hour)
		require.NoError(t, b.UpsertDirectory(ctx, remotestore.DirectoryNode{Owner: "alice", Path: "docs/work", LastModified: later}))

		got, err = b.GetDirectory(ctx, "alice", "docs/work")
		require.NoError(t, err)
		assert.True(t, later.Equal(got.LastModified))

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag("docs"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, remotestore.KindDirectory, entries[0].Kind)
		assert.True(t, later.Equal(entries[0].LastModified))
	})

	t.Run("root", func(t *testing.T) {
		b := newBackend(t)

		require.NoError(t, b.UpsertDirectory(ctx, remotestore.DirectoryNode{Owner: "alice", Path: "", LastModified: ts}))

		got, err := b.GetDirectory(ctx, "alice", "")
		require.NoError(t, err)
		assert.True(t, got.IsRoot())

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag(""))
		require.NoError(t, err)
		assert.Empty(t, entries, "root is not a child of itself")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		b := newBackend(t)

		require.NoError(t, b.DeleteDirectory(ctx, "alice", "docs"))

		require.NoError(t, b.UpsertDirectory(ctx, remotestore.DirectoryNode{Owner: "alice", Path: "docs", LastModified: ts}))
		require.NoError(t, b.DeleteDirectory(ctx, "alice", "docs"))
		require.NoError(t, b.DeleteDirectory(ctx, "alice", "docs"))

		_, err := b.GetDirectory(ctx, "alice", "docs")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag(""))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func testFindByTag(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T) remotestore.Backend {
		t.Helper()
		b := newBackend(t)
		for _, p := range []string{"docs/a.txt", "docs/b.txt", "docs/work/c.txt", "top.txt"} {
			_, err := b.PutObject(ctx, textObject("alice", p, p))
			require.NoError(t, err)
		}
		_, err := b.PutObject(ctx, textObject("bob", "docs/other.txt", "bob"))
		require.NoError(t, err)

		for _, d := range []string{"", "docs", "docs/work"} {
			require.NoError(t, b.UpsertDirectory(ctx, remotestore.DirectoryNode{Owner: "alice", Path: d, LastModified: ts}))
		}
		return b
	}

	t.Run("directory tag returns immediate children", func(t *testing.T) {
		b := seed(t)

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag("docs"))
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"a.txt", "b.txt", "work/"}, names(entries))
	})

	t.Run("directory tag at root", func(t *testing.T) {
		b := seed(t)

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag(""))
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"docs/", "top.txt"}, names(entries))
	})

	t.Run("empty directory", func(t *testing.T) {
		b := seed(t)

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag("nothing"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("owner tag returns every key", func(t *testing.T) {
		b := seed(t)

		entries, err := b.FindByTag(ctx, "alice", remotestore.OwnerTag("alice"))
		require.NoError(t, err)

		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			paths = append(paths, string(e.Kind)+":"+e.Path)
		}
		assert.ElementsMatch(t, []string{
			"object:docs/a.txt",
			"object:docs/b.txt",
			"object:docs/work/c.txt",
			"object:top.txt",
			"directory:",
			"directory:docs",
			"directory:docs/work",
		}, paths)
	})

	t.Run("owner tag of another owner", func(t *testing.T) {
		b := seed(t)

		entries, err := b.FindByTag(ctx, "alice", remotestore.OwnerTag("bob"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("object entries carry timestamps", func(t *testing.T) {
		b := seed(t)

		obj, err := b.GetObject(ctx, "alice", "top.txt")
		require.NoError(t, err)

		entries, err := b.FindByTag(ctx, "alice", remotestore.DirectoryTag(""))
		require.NoError(t, err)

		i := slices.IndexFunc(entries, func(e remotestore.IndexEntry) bool { return e.Path == "top.txt" })
		require.GreaterOrEqual(t, i, 0)
		assert.Equal(t, remotestore.KindObject, entries[i].Kind)
		assert.True(t, obj.LastModified.Equal(entries[i].LastModified))
	})

	t.Run("unknown tag", func(t *testing.T) {
		b := newBackend(t)

		_, err := b.FindByTag(ctx, "alice", remotestore.Tag{Name: "color", Value: "red"})
		assert.ErrorIs(t, err, remotestore.ErrInvalidInput)
	})
}

func names(entries []remotestore.IndexEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func testGrants(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	grant := func(owner, token string, grants ...string) remotestore.ScopeGrant {
		t.Helper()
		parsed, err := remotestore.ParseGrants(grants)
		require.NoError(t, err)
		return remotestore.ScopeGrant{Owner: owner, Token: token, Grants: parsed}
	}

	t.Run("resolve missing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.ResolveGrant(ctx, "alice", "tok")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)
	})

	t.Run("put then resolve", func(t *testing.T) {
		b := newBackend(t)
		want := grant("alice", "tok", "tasks:rw", "public:r", "r")

		require.NoError(t, b.PutGrant(ctx, want))

		got, err := b.ResolveGrant(ctx, "alice", "tok")
		require.NoError(t, err)
		assert.Equal(t, want, got)

		_, err = b.ResolveGrant(ctx, "bob", "tok")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)
	})

	t.Run("put replaces", func(t *testing.T) {
		b := newBackend(t)

		require.NoError(t, b.PutGrant(ctx, grant("alice", "tok", "tasks:rw")))
		require.NoError(t, b.PutGrant(ctx, grant("alice", "tok", "notes:r")))

		got, err := b.ResolveGrant(ctx, "alice", "tok")
		require.NoError(t, err)
		assert.Equal(t, []string{"notes:read"}, remotestore.GrantStrings(got.Grants))
	})

	t.Run("put rejects invalid", func(t *testing.T) {
		b := newBackend(t)

		err := b.PutGrant(ctx, remotestore.ScopeGrant{Owner: "alice"})
		assert.ErrorIs(t, err, remotestore.ErrInvalidInput)
	})

	t.Run("list", func(t *testing.T) {
		b := newBackend(t)

		require.NoError(t, b.PutGrant(ctx, grant("bob", "t1", "rw")))
		require.NoError(t, b.PutGrant(ctx, grant("alice", "t2", "tasks:r")))
		require.NoError(t, b.PutGrant(ctx, grant("alice", "t1", "notes:rw")))

		all, err := b.ListGrants(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "alice", all[0].Owner)
		assert.Equal(t, "t1", all[0].Token)
		assert.Equal(t, "alice", all[1].Owner)
		assert.Equal(t, "t2", all[1].Token)
		assert.Equal(t, "bob", all[2].Owner)

		alice, err := b.ListGrants(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, alice, 2)

		none, err := b.ListGrants(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		b := newBackend(t)

		err := b.DeleteGrant(ctx, "alice", "tok")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)

		require.NoError(t, b.PutGrant(ctx, grant("alice", "tok", "rw")))
		require.NoError(t, b.DeleteGrant(ctx, "alice", "tok"))

		_, err = b.ResolveGrant(ctx, "alice", "tok")
		assert.ErrorIs(t, err, remotestore.ErrNotFound)
	})
}
