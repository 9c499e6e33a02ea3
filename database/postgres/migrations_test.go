package postgres_test

// Migration tests validate that every table is created with the expected
// columns and indexes, and that DropTables removes them all again.
// When adding a table, extend getExpectedTableSchemas.

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableSchema struct {
	name            string
	expectedColumns map[string]string
	expectedIndexes []string
}

func getExpectedTableSchemas(tables remotestore.Tables) []tableSchema {
	return []tableSchema{
		{
			name: tables.Objects,
			expectedColumns: map[string]string{
				"owner":         "text",
				"path":          "text",
				"directory":     "text",
				"content_type":  "text",
				"content":       "bytea",
				"is_binary":     "boolean",
				"etag":          "text",
				"size_bytes":    "bigint",
				"last_modified": "timestamp with time zone",
			},
			expectedIndexes: []string{fmt.Sprintf("idx_%s_directory", tables.Objects)},
		},
		{
			name: tables.Directories,
			expectedColumns: map[string]string{
				"owner":         "text",
				"path":          "text",
				"parent":        "text",
				"last_modified": "timestamp with time zone",
			},
			expectedIndexes: []string{fmt.Sprintf("idx_%s_parent", tables.Directories)},
		},
		{
			name: tables.Grants,
			expectedColumns: map[string]string{
				"owner":  "text",
				"token":  "text",
				"grants": "ARRAY",
			},
		},
	}
}

func tableExists(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tableName string) bool {
	t.Helper()

	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, tableName).Scan(&exists)
	require.NoError(t, err, "failed to check table existence for %s", tableName)
	return exists
}

func verifyTableSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool, schema tableSchema) {
	t.Helper()

	assert.True(t, tableExists(t, ctx, pool, schema.name), "expected table %s to exist", schema.name)

	for colName, expectedType := range schema.expectedColumns {
		var dataType string
		err := pool.QueryRow(ctx, `
			SELECT data_type
			FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2
		`, schema.name, colName).Scan(&dataType)
		assert.NoError(t, err, "table %s: column %s does not exist", schema.name, colName)
		assert.Equal(t, expectedType, dataType, "table %s: column %s type mismatch", schema.name, colName)
	}

	for _, indexName := range schema.expectedIndexes {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM pg_indexes
				WHERE tablename = $1 AND indexname = $2
			)
		`, schema.name, indexName).Scan(&exists)
		assert.NoError(t, err, "table %s: failed to check index %s", schema.name, indexName)
		assert.True(t, exists, "table %s: expected index %s to exist", schema.name, indexName)
	}

	var constraintType string
	err := pool.QueryRow(ctx, `
		SELECT constraint_type
		FROM information_schema.table_constraints
		WHERE table_name = $1 AND constraint_type = 'PRIMARY KEY'
	`, schema.name).Scan(&constraintType)
	assert.NoError(t, err, "table %s: primary key constraint not found", schema.name)
}

func TestMigrate(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	t.Run("success - creates all tables with correct schemas", func(t *testing.T) {
		tables := randomTables(t)
		defer func() { _ = postgres.DropTables(ctx, pool, tables) }()

		require.NoError(t, postgres.Migrate(ctx, pool, tables), "Migrate failed")

		for _, schema := range getExpectedTableSchemas(tables) {
			t.Run(schema.name, func(t *testing.T) {
				verifyTableSchema(t, ctx, pool, schema)
			})
		}
	})

	t.Run("idempotent - can run multiple times", func(t *testing.T) {
		tables := randomTables(t)
		defer func() { _ = postgres.DropTables(ctx, pool, tables) }()

		assert.NoError(t, postgres.Migrate(ctx, pool, tables), "first Migrate failed")
		assert.NoError(t, postgres.Migrate(ctx, pool, tables), "second Migrate failed")
	})
}

func TestDropTables(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	t.Run("round trip - migrate, drop, migrate again", func(t *testing.T) {
		tables := randomTables(t)
		names := []string{tables.Objects, tables.Directories, tables.Grants}
		defer func() { _ = postgres.DropTables(ctx, pool, tables) }()

		require.NoError(t, postgres.Migrate(ctx, pool, tables))
		for _, name := range names {
			assert.True(t, tableExists(t, ctx, pool, name), "table %s should exist after migrate", name)
		}

		require.NoError(t, postgres.DropTables(ctx, pool, tables))
		for _, name := range names {
			assert.False(t, tableExists(t, ctx, pool, name), "table %s should not exist after drop", name)
		}

		assert.NoError(t, postgres.DropTables(ctx, pool, tables), "second DropTables failed")

		require.NoError(t, postgres.Migrate(ctx, pool, tables))
		for _, name := range names {
			assert.True(t, tableExists(t, ctx, pool, name), "table %s should exist after second migrate", name)
		}
	})
}
