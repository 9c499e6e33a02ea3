// Package internal holds the key layout and record encoding shared by the
// key-value backends (badger, redis).
//
// Keys are NUL separated; owners, paths and tokens never contain NUL.
//
//	o\x00<owner>\x00<path>                     object record
//	d\x00<owner>\x00<path>                     directory node ("" is the root)
//	g\x00<owner>\x00<token>                    scope grant
//	i\x00<owner>\x00<dir>\x00<kind>\x00<path>  directory tag index entry
//
// An index entry exists for every object and every non-root directory node,
// written and removed together with the record it points at.
package internal

import (
	"bytes"
	"fmt"

	"github.com/sagarc03/remotestore"
)

const sep = "\x00"

const (
	kindObject    = "o"
	kindDirectory = "d"
)

func join(parts ...string) []byte {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(p)
	}
	return b.Bytes()
}

func ObjectKey(owner, path string) []byte {
	return join("o", owner, path)
}

// ObjectPrefix selects every object record of owner.
func ObjectPrefix(owner string) []byte {
	return join("o", owner, "")
}

func DirectoryKey(owner, path string) []byte {
	return join("d", owner, path)
}

// DirectoryPrefix selects every directory node of owner.
func DirectoryPrefix(owner string) []byte {
	return join("d", owner, "")
}

func GrantKey(owner, token string) []byte {
	return join("g", owner, token)
}

// GrantPrefix selects the grants of owner, or every grant when owner is "".
func GrantPrefix(owner string) []byte {
	if owner == "" {
		return join("g", "")
	}
	return join("g", owner, "")
}

// IndexMember encodes the tagged key inside an index: kind and path.
func IndexMember(kind remotestore.EntryKind, path string) string {
	if kind == remotestore.KindDirectory {
		return kindDirectory + sep + path
	}
	return kindObject + sep + path
}

// ParseIndexMember reverses IndexMember.
func ParseIndexMember(member string) (remotestore.EntryKind, string, error) {
	kind, path, ok := bytes.Cut([]byte(member), []byte(sep))
	if !ok {
		return "", "", fmt.Errorf("parse index member %q: missing separator", member)
	}
	switch string(kind) {
	case kindObject:
		return remotestore.KindObject, string(path), nil
	case kindDirectory:
		return remotestore.KindDirectory, string(path), nil
	default:
		return "", "", fmt.Errorf("parse index member %q: unknown kind", member)
	}
}

func IndexKey(owner, dir string, kind remotestore.EntryKind, path string) []byte {
	return append(IndexPrefix(owner, dir), IndexMember(kind, path)...)
}

// IndexPrefix selects every key tagged directory = dir for owner.
func IndexPrefix(owner, dir string) []byte {
	return join("i", owner, dir, "")
}

// Suffix returns what follows prefix in key.
func Suffix(prefix, key []byte) (string, error) {
	if !bytes.HasPrefix(key, prefix) {
		return "", fmt.Errorf("key %q does not start with %q", key, prefix)
	}
	return string(key[len(prefix):]), nil
}
