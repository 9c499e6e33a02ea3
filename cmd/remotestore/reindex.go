package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/remotestore/config"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex <owner> [owner] ...",
	Short: "Rebuild the directory nodes of owners",
	Long: `Rebuild directory nodes from the stored objects. Every ancestor of an
object is stamped with its newest descendant's timestamp and directory
nodes without descendants are removed.

Run this after a write or delete failed part way through its ancestor
walk and left stale directory timestamps or empty directories behind.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := openStack(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	for _, owner := range args {
		result, err := s.service.Reindex(ctx, owner)
		if err != nil {
			return fmt.Errorf("reindex %s: %w", owner, err)
		}
		slog.Info("reindex complete",
			"owner", owner,
			"objects", result.Objects,
			"directories_updated", result.DirectoriesUpdated,
			"directories_pruned", result.DirectoriesPruned,
		)
	}

	return nil
}
