// Package badger implements remotestore.Backend on an embedded BadgerDB.
//
// Records and their directory tag index entries are written in the same
// transaction, so a key and its tag never disagree. Tag queries are prefix
// scans over the index; see database/internal for the key layout.
package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/internal"
)

const maxConflictRetries = 3

type Store struct {
	db    *badger.DB
	clock func() time.Time
}

func newStore(db *badger.DB, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{db: db, clock: clock}
}

func backingStore(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, remotestore.ErrBackingStore, err)
}

// update runs fn in a read-write transaction, retrying on conflicts with
// concurrent transactions.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, remotestore.ErrNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *Store) GetObject(ctx context.Context, owner, path string) (remotestore.StorageObject, error) {
	if err := ctx.Err(); err != nil {
		return remotestore.StorageObject{}, fmt.Errorf("get object: %w", err)
	}

	var obj remotestore.StorageObject
	err := s.db.View(func(txn *badger.Txn) error {
		data, err := getValue(txn, internal.ObjectKey(owner, path))
		if err != nil {
			return err
		}
		obj, err = internal.DecodeObject(owner, path, data)
		return err
	})
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			return remotestore.StorageObject{}, remotestore.ErrNotFound
		}
		return remotestore.StorageObject{}, backingStore("get object", err)
	}
	return obj, nil
}

func (s *Store) PutObject(ctx context.Context, obj remotestore.StorageObject) (remotestore.StorageObject, error) {
	obj.LastModified = s.clock().UTC().Truncate(time.Millisecond)

	data, err := internal.EncodeObject(obj)
	if err != nil {
		return remotestore.StorageObject{}, fmt.Errorf("put object: %w", err)
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(internal.ObjectKey(obj.Owner, obj.Path), data); err != nil {
			return err
		}
		return txn.Set(
			internal.IndexKey(obj.Owner, obj.Directory(), remotestore.KindObject, obj.Path),
			internal.EncodeMillis(obj.LastModified),
		)
	})
	if err != nil {
		return remotestore.StorageObject{}, backingStore("put object", err)
	}
	return obj, nil
}

func (s *Store) DeleteObject(ctx context.Context, owner, path string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := internal.ObjectKey(owner, path)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return remotestore.ErrNotFound
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(internal.IndexKey(owner, remotestore.Parent(path), remotestore.KindObject, path))
	})
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			return fmt.Errorf("delete object: %w", remotestore.ErrNotFound)
		}
		return backingStore("delete object", err)
	}
	return nil
}

func (s *Store) GetDirectory(ctx context.Context, owner, path string) (remotestore.DirectoryNode, error) {
	if err := ctx.Err(); err != nil {
		return remotestore.DirectoryNode{}, fmt.Errorf("get directory: %w", err)
	}

	var node remotestore.DirectoryNode
	err := s.db.View(func(txn *badger.Txn) error {
		data, err := getValue(txn, internal.DirectoryKey(owner, path))
		if err != nil {
			return err
		}
		node, err = internal.DecodeDirectory(owner, path, data)
		return err
	})
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			return remotestore.DirectoryNode{}, remotestore.ErrNotFound
		}
		return remotestore.DirectoryNode{}, backingStore("get directory", err)
	}
	return node, nil
}

func (s *Store) UpsertDirectory(ctx context.Context, node remotestore.DirectoryNode) error {
	data, err := internal.EncodeDirectory(node)
	if err != nil {
		return fmt.Errorf("upsert directory: %w", err)
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(internal.DirectoryKey(node.Owner, node.Path), data); err != nil {
			return err
		}
		if node.IsRoot() {
			return nil
		}
		return txn.Set(
			internal.IndexKey(node.Owner, node.Parent(), remotestore.KindDirectory, node.Path),
			internal.EncodeMillis(node.LastModified),
		)
	})
	if err != nil {
		return backingStore("upsert directory", err)
	}
	return nil
}

func (s *Store) DeleteDirectory(ctx context.Context, owner, path string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(internal.DirectoryKey(owner, path)); err != nil {
			return err
		}
		if path == "" {
			return nil
		}
		return txn.Delete(internal.IndexKey(owner, remotestore.Parent(path), remotestore.KindDirectory, path))
	})
	if err != nil {
		return backingStore("delete directory", err)
	}
	return nil
}

func (s *Store) FindByTag(ctx context.Context, owner string, tag remotestore.Tag) ([]remotestore.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("find by tag: %w", err)
	}

	var (
		entries []remotestore.IndexEntry
		err     error
	)
	switch tag.Name {
	case remotestore.TagDirectory:
		entries, err = s.children(owner, tag.Value)
	case remotestore.TagOwner:
		if tag.Value != owner {
			return nil, nil
		}
		entries, err = s.ownerEntries(owner)
	default:
		return nil, fmt.Errorf("find by tag: %w: unknown tag %q", remotestore.ErrInvalidInput, tag.Name)
	}
	if err != nil {
		return nil, backingStore("find by tag", err)
	}
	return entries, nil
}

func (s *Store) children(owner, dir string) ([]remotestore.IndexEntry, error) {
	prefix := internal.IndexPrefix(owner, dir)
	entries := make([]remotestore.IndexEntry, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			member, err := internal.Suffix(prefix, item.Key())
			if err != nil {
				return err
			}
			kind, path, err := internal.ParseIndexMember(member)
			if err != nil {
				return err
			}
			var ts time.Time
			err = item.Value(func(val []byte) error {
				ts, err = internal.DecodeMillis(val)
				return err
			})
			if err != nil {
				return err
			}
			entries = append(entries, remotestore.IndexEntry{Kind: kind, Path: path, LastModified: ts})
		}
		return nil
	})
	return entries, err
}

func (s *Store) ownerEntries(owner string) ([]remotestore.IndexEntry, error) {
	var entries []remotestore.IndexEntry

	err := s.db.View(func(txn *badger.Txn) error {
		scan := func(prefix []byte, kind remotestore.EntryKind) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				path, err := internal.Suffix(prefix, item.Key())
				if err != nil {
					return err
				}
				var ts time.Time
				err = item.Value(func(val []byte) error {
					if kind == remotestore.KindObject {
						obj, err := internal.DecodeObject(owner, path, val)
						ts = obj.LastModified
						return err
					}
					node, err := internal.DecodeDirectory(owner, path, val)
					ts = node.LastModified
					return err
				})
				if err != nil {
					return err
				}
				entries = append(entries, remotestore.IndexEntry{Kind: kind, Path: path, LastModified: ts})
			}
			return nil
		}

		if err := scan(internal.ObjectPrefix(owner), remotestore.KindObject); err != nil {
			return err
		}
		return scan(internal.DirectoryPrefix(owner), remotestore.KindDirectory)
	})
	return entries, err
}

func (s *Store) ResolveGrant(ctx context.Context, owner, token string) (remotestore.ScopeGrant, error) {
	if err := ctx.Err(); err != nil {
		return remotestore.ScopeGrant{}, fmt.Errorf("resolve grant: %w", err)
	}

	var grant remotestore.ScopeGrant
	err := s.db.View(func(txn *badger.Txn) error {
		data, err := getValue(txn, internal.GrantKey(owner, token))
		if err != nil {
			return err
		}
		grant, err = internal.DecodeGrant(owner, token, data)
		return err
	})
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			return remotestore.ScopeGrant{}, remotestore.ErrNotFound
		}
		return remotestore.ScopeGrant{}, backingStore("resolve grant", err)
	}
	return grant, nil
}

func (s *Store) PutGrant(ctx context.Context, grant remotestore.ScopeGrant) error {
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("put grant: %w", err)
	}

	data, err := internal.EncodeGrant(grant)
	if err != nil {
		return fmt.Errorf("put grant: %w", err)
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(internal.GrantKey(grant.Owner, grant.Token), data)
	})
	if err != nil {
		return backingStore("put grant", err)
	}
	return nil
}

func (s *Store) DeleteGrant(ctx context.Context, owner, token string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := internal.GrantKey(owner, token)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return remotestore.ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			return fmt.Errorf("delete grant: %w", remotestore.ErrNotFound)
		}
		return backingStore("delete grant", err)
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, owner string) ([]remotestore.ScopeGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	prefix := internal.GrantPrefix(owner)
	grants := make([]remotestore.ScopeGrant, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			rest, err := internal.Suffix(internal.GrantPrefix(""), item.Key())
			if err != nil {
				return err
			}
			grantOwner, token, ok := strings.Cut(rest, "\x00")
			if !ok {
				return fmt.Errorf("malformed grant key %q", item.Key())
			}
			err = item.Value(func(val []byte) error {
				g, err := internal.DecodeGrant(grantOwner, token, val)
				if err != nil {
					return err
				}
				grants = append(grants, g)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, backingStore("list grants", err)
	}
	return grants, nil
}
