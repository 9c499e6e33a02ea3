package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/dbtest"
	"github.com/sagarc03/remotestore/database/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Backend(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) remotestore.Backend {
		return memory.New()
	})
}

func TestStore_WithClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 678901234, time.FixedZone("X", 3600))

	s := memory.New(memory.WithClock(func() time.Time { return fixed }))

	stored, err := s.PutObject(ctx, remotestore.StorageObject{Owner: "alice", Path: "a.txt"})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 2, 2, 4, 5, 678000000, time.UTC), stored.LastModified)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	obj := remotestore.StorageObject{Owner: "alice", Path: "a.txt", Content: []byte("abc")}
	_, err := s.PutObject(ctx, obj)
	require.NoError(t, err)

	obj.Content[0] = 'x'

	got, err := s.GetObject(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got.Content)

	got.Content[0] = 'y'

	again, err := s.GetObject(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.Content)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memory.New()

	_, err := s.GetObject(ctx, "alice", "a.txt")
	assert.ErrorIs(t, err, context.Canceled)

	err = s.UpsertDirectory(ctx, remotestore.DirectoryNode{Owner: "alice"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDatabase(t *testing.T) {
	ctx := context.Background()
	db := memory.Connect()

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Validate(ctx))
	assert.NotNil(t, db.GetRepo())
	assert.NoError(t, db.Close())
}
