package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove --owner <owner> [flags] <path1> [path2] ...",
	Short: "Remove objects from an owner's storage",
	Long: `Delete objects without a bearer token. Empty directories left behind
are pruned and the remaining ancestors are refreshed, as for an HTTP DELETE.

Examples:
  # Remove a single object
  remotestore remove --owner jimmy tasks/laundry

  # Remove everything below a directory
  remotestore remove --owner jimmy --recursive tasks/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var (
	removeOwner     string
	removeRecursive bool
	removeQuiet     bool
)

func init() {
	removeCmd.Flags().StringVar(&removeOwner, "owner", "", "owner to remove from")
	removeCmd.Flags().BoolVarP(&removeRecursive, "recursive", "r", false, "treat paths as directories and remove every object below them")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-file output")
	_ = removeCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	var paths []string
	for _, arg := range args {
		p, err := remotestore.CanonicalPath(arg)
		if err != nil {
			return err
		}

		if !removeRecursive {
			paths = append(paths, p)
			continue
		}

		below, err := s.service.ListAll(ctx, removeOwner, strings.Trim(p, "/"))
		if err != nil {
			return fmt.Errorf("list %s: %w", arg, err)
		}
		paths = append(paths, below...)
	}

	removed, notFound := 0, 0
	for _, p := range paths {
		err := s.service.Remove(ctx, removeOwner, p)
		if errors.Is(err, remotestore.ErrNotFound) {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "path", p)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}

		removed++
		if !removeQuiet {
			slog.Info("removed", "path", p)
		}
	}

	slog.Info("remove complete", "owner", removeOwner, "removed", removed, "not_found", notFound)
	return nil
}
