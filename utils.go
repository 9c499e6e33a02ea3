package remotestore

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var validOwnerRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@+-]*$`)

// IsValidOwner checks that an owner id is a non-empty token of letters, digits
// and . _ @ + - of at most 128 bytes, not starting with punctuation.
func IsValidOwner(owner string) bool {
	return len(owner) <= 128 && validOwnerRegex.MatchString(owner)
}

// IsValidPath validates that a path string meets the requirements for an object path.
// It checks that the path:
//   - is not empty
//   - does not start or end with "/"
//   - has no empty, "." or ".." segments
//   - is valid UTF-8
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
//
// Percent escapes are allowed so that canonical escaped keys pass.
func IsValidPath(p string) bool {
	if p == "" {
		return false
	}

	if p[0] == '/' || strings.HasSuffix(p, "/") {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// IsValidDirectory reports whether d names a directory: the root ("") or a valid path.
func IsValidDirectory(d string) bool {
	return d == "" || IsValidPath(d)
}

// Parent returns the immediate parent of p, "" for top-level paths.
func Parent(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

// Leaf returns the last segment of p.
func Leaf(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Join appends name to dir.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Ancestors returns every proper ancestor of p ordered from its parent up to
// and including the root "". The root itself has no ancestors.
func Ancestors(p string) []string {
	if p == "" {
		return nil
	}
	ancestors := make([]string, 0, strings.Count(p, "/")+1)
	for a := Parent(p); ; a = Parent(a) {
		ancestors = append(ancestors, a)
		if a == "" {
			return ancestors
		}
	}
}

// Category returns the first segment of p when p contains a separator and ""
// otherwise. Root-level objects and the root listing fall in the "" category.
// Listing paths are passed with their trailing separator.
func Category(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

// CanonicalPath turns a raw, possibly escaped, request path into the form keys
// are stored under: each segment is unescaped and then escaped again so that
// "%3A" and ":" address the same object. A trailing separator is preserved.
func CanonicalPath(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	trailing := strings.HasSuffix(raw, "/")
	segments := strings.Split(strings.TrimSuffix(raw, "/"), "/")
	for i, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			return "", fmt.Errorf("canonical path: %w: %w", ErrInvalidInput, err)
		}
		segments[i] = url.PathEscape(unescaped)
	}

	p := strings.Join(segments, "/")
	if trailing {
		p += "/"
	}
	return p, nil
}

func validateOwner(owner string) error {
	if owner == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errEmptyOwner)
	}
	if !IsValidOwner(owner) {
		return fmt.Errorf("%w: invalid owner %q", ErrInvalidInput, owner)
	}
	return nil
}
