package grants_test

import (
	"context"
	"testing"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/memory"
	"github.com/sagarc03/remotestore/grants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	t.Parallel()

	a, b := grants.NewToken(), grants.NewToken()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()

	records := []remotestore.ScopeGrant{
		{Owner: "jimmy", Token: "1", Grants: []remotestore.Grant{{Category: "tasks", Permission: remotestore.PermissionReadWrite}}},
		{Owner: "alice", Token: "2", Grants: []remotestore.Grant{{Permission: remotestore.PermissionRead}}},
	}

	n, err := grants.Import(ctx, store, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.ResolveGrant(ctx, "jimmy", "1")
	require.NoError(t, err)
	assert.Equal(t, records[0], got)
}

func TestImport_StopsOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()

	records := []remotestore.ScopeGrant{
		{Owner: "jimmy", Token: "1"},
		{Owner: "jimmy", Token: ""},
		{Owner: "alice", Token: "3"},
	}

	n, err := grants.Import(ctx, store, records)
	assert.ErrorIs(t, err, remotestore.ErrInvalidInput)
	assert.Equal(t, 1, n)

	_, err = store.ResolveGrant(ctx, "alice", "3")
	assert.ErrorIs(t, err, remotestore.ErrNotFound)
}

func TestImportFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()

	path := writeTestFile(t, "grants.yaml", "- {owner: jimmy, token: abc, grants: [\"tasks:rw\"]}\n")

	n, err := grants.ImportFile(ctx, store, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.ListGrants(ctx, "jimmy")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].Token)
}
