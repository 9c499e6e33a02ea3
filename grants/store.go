package grants

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/remotestore"
)

// NewToken returns a fresh random bearer token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Import writes every grant to repo, replacing existing records with the same
// (owner, token). It stops at the first failure and returns how many grants
// were written before it.
func Import(ctx context.Context, repo remotestore.GrantRepo, grants []remotestore.ScopeGrant) (int, error) {
	for i, g := range grants {
		if err := repo.PutGrant(ctx, g); err != nil {
			return i, fmt.Errorf("import grant for %q: %w", g.Owner, err)
		}
	}
	return len(grants), nil
}

// ImportFile loads path and imports it into repo.
func ImportFile(ctx context.Context, repo remotestore.GrantRepo, path string) (int, error) {
	grants, err := LoadFile(path)
	if err != nil {
		return 0, err
	}

	n, err := Import(ctx, repo, grants)
	if err != nil {
		return n, err
	}

	slog.InfoContext(ctx, "imported grants", "file", path, "count", n)
	return n, nil
}
