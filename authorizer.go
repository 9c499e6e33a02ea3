package remotestore

import (
	"context"
	"errors"
	"fmt"
)

// GrantResolver looks up the ScopeGrant for an (owner, token) pair.
// It returns ErrNotFound when no record exists.
type GrantResolver interface {
	ResolveGrant(ctx context.Context, owner, token string) (ScopeGrant, error)
}

// Authorizer gates requests on the caller's scope.
type Authorizer struct {
	resolver GrantResolver
}

func NewAuthorizer(resolver GrantResolver) *Authorizer {
	return &Authorizer{resolver: resolver}
}

// Authorize returns nil when the caller may perform perm on category, and
// ErrForbidden when it may not. Reads of the public category never hit the
// resolver. A lookup failure other than ErrNotFound is returned wrapped so the
// caller can tell a broken store from a denial.
func (a *Authorizer) Authorize(ctx context.Context, owner, token, category string, perm Permission) error {
	if category == PublicCategory && perm == PermissionRead {
		return nil
	}

	if token == "" {
		return fmt.Errorf("authorize %s on %q: %w", perm, category, ErrForbidden)
	}

	grant, err := a.resolver.ResolveGrant(ctx, owner, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("authorize %s on %q: %w", perm, category, ErrForbidden)
		}
		return fmt.Errorf("authorize: resolve grant: %w", err)
	}

	if !grant.Allows(category, perm) {
		return fmt.Errorf("authorize %s on %q: %w", perm, category, ErrForbidden)
	}

	return nil
}
