package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/remotestore/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "remotestore",
	Short:   "Per-user object storage server with a remoteStorage API",
	Long: `remotestore serves per-user, path-addressed storage over HTTP.
Objects live in a key-value or SQL backend; directories are synthesized
from the stored paths and bearer tokens are scoped to categories.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, merged left to right (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: memory, sqlite, postgres, badger, redis (env: REMOTESTORE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (env: REMOTESTORE_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("blob-type", "", "binary payload store: filesystem, s3 (env: REMOTESTORE_BLOB_TYPE)")
	rootCmd.PersistentFlags().String("blob-path", "", "filesystem payload directory (env: REMOTESTORE_BLOB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: REMOTESTORE_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
