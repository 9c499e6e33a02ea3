package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalFile is a regular file found by Walk.
type LocalFile struct {
	// Path is slash-separated and relative to the walked root.
	Path        string
	Size        int64
	ContentType string
}

// Walk recursively lists the regular files under root, skipping hidden files
// and directories. It is used to seed a user's storage from a local tree.
func Walk(ctx context.Context, root *os.Root) ([]LocalFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var files []LocalFile

	if err := walkDir(ctx, root, ".", &files); err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	return files, nil
}

func walkDir(ctx context.Context, root *os.Root, dir string, files *[]LocalFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		entryPath := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := walkDir(ctx, root, entryPath, files); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		*files = append(*files, LocalFile{
			Path:        entryPath,
			Size:        info.Size(),
			ContentType: DetectContentType(entryPath),
		})
	}

	return nil
}

// DetectContentType guesses a content type from the file extension.
func DetectContentType(name string) string {
	contentType := mime.TypeByExtension(filepath.Ext(name))

	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}
