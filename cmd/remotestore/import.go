package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/config"
	"github.com/sagarc03/remotestore/filesystem"
)

var importCmd = &cobra.Command{
	Use:   "import --owner <owner> [flags] <dir>",
	Short: "Import a local directory into an owner's storage",
	Long: `Copy every regular file below a local directory into an owner's
namespace, creating the directory nodes along the way. Hidden files are
skipped. File names are stored in their escaped form.

Examples:
  # Import a photo album
  remotestore import --owner jimmy --dest pictures/2024 ./album

  # Skip files that already exist
  remotestore import --owner jimmy --no-clobber ./backup`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	importOwner     string
	importDest      string
	importNoClobber bool
	importQuiet     bool
)

func init() {
	importCmd.Flags().StringVar(&importOwner, "owner", "", "owner to import into")
	importCmd.Flags().StringVarP(&importDest, "dest", "d", "", "destination directory in the owner's storage")
	importCmd.Flags().BoolVarP(&importNoClobber, "no-clobber", "n", false, "skip existing objects instead of overwriting")
	importCmd.Flags().BoolVarP(&importQuiet, "quiet", "q", false, "suppress per-file output")
	_ = importCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	dest := strings.Trim(importDest, "/")
	if !remotestore.IsValidDirectory(dest) {
		return fmt.Errorf("invalid destination %q", importDest)
	}

	src, err := os.OpenRoot(args[0])
	if err != nil {
		return fmt.Errorf("open source directory: %w", err)
	}
	defer func() { _ = src.Close() }()

	files, err := filesystem.Walk(ctx, src)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		slog.Info("no files to import")
		return nil
	}

	s, err := openStack(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	imported, skipped := 0, 0
	for _, f := range files {
		key := remotestore.Join(dest, escapePath(f.Path))

		if importNoClobber {
			if _, err := s.backend.GetObject(ctx, importOwner, key); err == nil {
				skipped++
				if !importQuiet {
					slog.Info("skipped (exists)", "path", key)
				}
				continue
			}
		}

		r, err := src.Open(f.Path)
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Path, err)
		}

		_, err = s.service.Import(ctx, importOwner, remotestore.PutObject{Path: key, ContentType: f.ContentType}, r)
		_ = r.Close()
		if err != nil {
			return fmt.Errorf("import %s: %w", key, err)
		}

		imported++
		if !importQuiet {
			slog.Info("imported", "path", key, "size", f.Size, "content_type", f.ContentType)
		}
	}

	slog.Info("import complete", "owner", importOwner, "imported", imported, "skipped", skipped)
	return nil
}

// escapePath escapes each segment of a slash-separated local path into the
// canonical stored form.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
