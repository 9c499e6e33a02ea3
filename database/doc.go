// Package database provides a unified interface for connecting to storage backends.
//
// # Supported Backends
//
//   - memory: process-local maps, for tests and throwaway servers
//   - sqlite: single-node deployments using modernc.org/sqlite
//   - postgres: shared deployments using a pgx connection pool
//   - badger: embedded key-value store with a prefix-scanned tag index
//   - redis: shared key-value store with sorted-set tag indexes
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Type:   "sqlite",
//	    DSN:    "remotestore.db",
//	    Tables: remotestore.DefaultTables(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	backend := db.GetRepo()
//
// Open pings the backend, runs migrations and validates the schema. Connect
// only opens it.
package database
