package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/remotestore"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

func getTableMigrations(tables remotestore.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Objects,
			Up:        createObjectsTable(tables.Objects),
			Down:      dropTable(tables.Objects),
		},
		{
			TableName: tables.Directories,
			Up:        createDirectoriesTable(tables.Directories),
			Down:      dropTable(tables.Directories),
		},
		{
			TableName: tables.Grants,
			Up:        createGrantsTable(tables.Grants),
			Down:      dropTable(tables.Grants),
		},
	}
}

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables remotestore.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables remotestore.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func createObjectsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexDirectory := pgx.Identifier{fmt.Sprintf("idx_%s_directory", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				owner TEXT NOT NULL,
				path TEXT NOT NULL,
				directory TEXT NOT NULL,
				content_type TEXT NOT NULL,
				content BYTEA,
				is_binary BOOLEAN NOT NULL,
				etag TEXT NOT NULL,
				size_bytes BIGINT NOT NULL,
				last_modified TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (owner, path)
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (owner, directory);
		`,
			quotedTable,
			indexDirectory, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create objects table: %w", err)
		}
		return nil
	}
}

func createDirectoriesTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexParent := pgx.Identifier{fmt.Sprintf("idx_%s_parent", tableName)}.Sanitize()

		// parent is NULL for the root, which carries no directory tag.
		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				owner TEXT NOT NULL,
				path TEXT NOT NULL,
				parent TEXT,
				last_modified TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (owner, path)
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (owner, parent)
			WHERE (parent IS NOT NULL);
		`,
			quotedTable,
			indexParent, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create directories table: %w", err)
		}
		return nil
	}
}

func createGrantsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				owner TEXT NOT NULL,
				token TEXT NOT NULL,
				grants TEXT[] NOT NULL,
				PRIMARY KEY (owner, token)
			);
		`, pgx.Identifier{tableName}.Sanitize())

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create grants table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}
