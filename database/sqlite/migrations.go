package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/remotestore"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations for the app
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

func Migrate(ctx context.Context, db *sql.DB, tables remotestore.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables remotestore.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createObjectsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexDirectory := quoteIdentifier(fmt.Sprintf("idx_%s_directory", tableName))

		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				owner TEXT NOT NULL,
				path TEXT NOT NULL,
				directory TEXT NOT NULL,
				content_type TEXT NOT NULL,
				content BLOB,
				is_binary INTEGER NOT NULL,
				etag TEXT NOT NULL,
				size_bytes INTEGER NOT NULL,
				last_modified TEXT NOT NULL,
				PRIMARY KEY (owner, path)
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (owner, directory)
		`, indexDirectory, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index directory: %w", err)
		}

		return nil
	}
}

func createDirectoriesTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexParent := quoteIdentifier(fmt.Sprintf("idx_%s_parent", tableName))

		// parent is NULL for the root, which carries no directory tag.
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				owner TEXT NOT NULL,
				path TEXT NOT NULL,
				parent TEXT,
				last_modified TEXT NOT NULL,
				PRIMARY KEY (owner, path)
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (owner, parent)
		`, indexParent, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index parent: %w", err)
		}

		return nil
	}
}

func createGrantsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				owner TEXT NOT NULL,
				token TEXT NOT NULL,
				grants TEXT NOT NULL,
				PRIMARY KEY (owner, token)
			)
		`, quoteIdentifier(tableName))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
