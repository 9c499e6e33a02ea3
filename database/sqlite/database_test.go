package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/dbtest"
	"github.com/sagarc03/remotestore/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestRepo_Backend(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) remotestore.Backend {
		return setupTestRepo(t)
	})
}

func TestDatabase_Lifecycle(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err)

	require.NoError(t, db.Ping(ctx))

	assert.Error(t, db.Validate(ctx), "validate should fail without tables")

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrate should be idempotent")
	assert.NoError(t, db.Validate(ctx))

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(ctx), "ping should fail after close")
}

func TestDatabase_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "remotestore.db")
	tables := remotestore.DefaultTables()

	db, err := sqlite.Connect(ctx, dsn, tables)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	_, err = db.GetRepo().PutObject(ctx, remotestore.StorageObject{
		Owner: "alice", Path: "a.txt", ContentType: "text/plain", Content: []byte("kept"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = sqlite.Connect(ctx, dsn, tables)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	got, err := db.GetRepo().GetObject(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), got.Content)
}

func TestValidateSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("error - missing columns", func(t *testing.T) {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		db.SetMaxOpenConns(1)
		defer func() { _ = db.Close() }()

		tables := randomTables(t)
		require.NoError(t, sqlite.Migrate(ctx, db, tables))

		_, err = db.ExecContext(ctx, `DROP TABLE "`+tables.Grants+`"`)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `CREATE TABLE "`+tables.Grants+`" (owner TEXT NOT NULL)`)
		require.NoError(t, err)

		err = sqlite.ValidateSchema(ctx, db, tables)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing columns")
	})

	t.Run("drop tables", func(t *testing.T) {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		db.SetMaxOpenConns(1)
		defer func() { _ = db.Close() }()

		tables := randomTables(t)
		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		require.NoError(t, sqlite.ValidateSchema(ctx, db, tables))

		require.NoError(t, sqlite.DropTables(ctx, db, tables))
		assert.Error(t, sqlite.ValidateSchema(ctx, db, tables))
		assert.NoError(t, sqlite.DropTables(ctx, db, tables), "drop should be idempotent")
	})
}
