package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) remotestore.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return remotestore.Tables{
		Objects:     "objects_" + suffix,
		Directories: "directories_" + suffix,
		Grants:      "grants_" + suffix,
	}
}

// setupTestRepo creates a migrated in-memory database with unique table names.
func setupTestRepo(t *testing.T) remotestore.Backend {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	return db.GetRepo()
}
