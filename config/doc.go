// Package config provides configuration loading and validation for remotestore.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (REMOTESTORE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with REMOTESTORE_ prefix:
//   - server.port → REMOTESTORE_SERVER_PORT
//   - database.type → REMOTESTORE_DATABASE_TYPE
//   - blob.s3.bucket → REMOTESTORE_BLOB_S3_BUCKET
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, max_upload_size, read/write timeouts and cleanup_timeout
//   - Database: type (memory, sqlite, postgres, badger, redis), DSN and SQL table names
//   - Blob: binary payload store, filesystem path or s3 bucket settings
//   - Namespace: walk_concurrency for ancestor updates
//   - Auth: grants_file imported at startup
//   - CORS: exposed headers and preflight max age
//   - Log: logging level
//   - Env: dev or prod, selecting the log handler
//
// # Validation
//
// Configuration is validated using struct tags, plus Config.Validate for rules
// that span fields:
//   - Port must be 1-65535
//   - Database DSN is required unless the type is memory
//   - Blob path is required for the filesystem store, bucket for s3
//   - Log level must be debug, info, warn, or error
package config
