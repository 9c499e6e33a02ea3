package remotestore

import (
	"fmt"
	"strings"
)

// PublicCategory is readable by anyone and writable only with a grant.
const PublicCategory = "public"

// Permission is the access level of a grant.
type Permission string

const (
	PermissionRead      Permission = "read"
	PermissionReadWrite Permission = "read-write"
)

// IsValid reports whether p is one of the known permissions.
func (p Permission) IsValid() bool {
	return p == PermissionRead || p == PermissionReadWrite
}

// Covers reports whether a grant with permission p satisfies a request for want.
func (p Permission) Covers(want Permission) bool {
	switch p {
	case PermissionReadWrite:
		return want.IsValid()
	case PermissionRead:
		return want == PermissionRead
	default:
		return false
	}
}

// ParsePermission accepts the long and short spellings of a permission.
func ParsePermission(s string) (Permission, error) {
	switch s {
	case "r", "read":
		return PermissionRead, nil
	case "rw", "read-write":
		return PermissionReadWrite, nil
	default:
		return "", fmt.Errorf("parse permission: %w: %q (valid: r, rw, read, read-write)", ErrInvalidInput, s)
	}
}

// Grant maps one category to a permission. The empty category is the root
// grant and matches every category.
type Grant struct {
	Category   string
	Permission Permission
}

// String renders the canonical "category:permission" form.
func (g Grant) String() string {
	return g.Category + ":" + string(g.Permission)
}

// Matches reports whether g authorizes perm on category.
func (g Grant) Matches(category string, perm Permission) bool {
	if g.Category != "" && g.Category != category {
		return false
	}
	return g.Permission.Covers(perm)
}

// ParseGrant parses one grant string. Accepted forms:
//
//	"rw"            root grant
//	":r"            root grant
//	"tasks:rw"      category grant
//	"documents"     legacy category grant, read-write
func ParseGrant(s string) (Grant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Grant{}, fmt.Errorf("parse grant: %w: empty grant", ErrInvalidInput)
	}

	category, perm, found := strings.Cut(s, ":")
	if !found {
		if p, err := ParsePermission(s); err == nil {
			return Grant{Permission: p}, nil
		}
		if strings.Contains(s, "/") {
			return Grant{}, fmt.Errorf("parse grant: %w: category %q contains a separator", ErrInvalidInput, s)
		}
		return Grant{Category: s, Permission: PermissionReadWrite}, nil
	}

	if strings.Contains(category, "/") {
		return Grant{}, fmt.Errorf("parse grant: %w: category %q contains a separator", ErrInvalidInput, category)
	}

	p, err := ParsePermission(perm)
	if err != nil {
		return Grant{}, fmt.Errorf("parse grant %q: %w", s, err)
	}

	return Grant{Category: category, Permission: p}, nil
}

// ParseGrants parses an ordered list of grant strings.
func ParseGrants(ss []string) ([]Grant, error) {
	grants := make([]Grant, 0, len(ss))
	for _, s := range ss {
		g, err := ParseGrant(s)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, nil
}

// GrantStrings renders grants in canonical form, preserving order.
func GrantStrings(grants []Grant) []string {
	out := make([]string, len(grants))
	for i, g := range grants {
		out[i] = g.String()
	}
	return out
}

// ScopeGrant is the authorization record for one (owner, token) pair.
type ScopeGrant struct {
	Owner  string
	Token  string
	Grants []Grant
}

// Allows reports whether any grant covers perm on category.
func (s ScopeGrant) Allows(category string, perm Permission) bool {
	for _, g := range s.Grants {
		if g.Matches(category, perm) {
			return true
		}
	}
	return false
}

// Validate checks the record before it is persisted.
func (s ScopeGrant) Validate() error {
	if err := validateOwner(s.Owner); err != nil {
		return fmt.Errorf("validate grant: %w", err)
	}
	if s.Token == "" {
		return fmt.Errorf("validate grant: %w: token cannot be empty", ErrInvalidInput)
	}
	for _, g := range s.Grants {
		if !g.Permission.IsValid() {
			return fmt.Errorf("validate grant: %w: invalid permission %q", ErrInvalidInput, g.Permission)
		}
	}
	return nil
}
