// Package redis implements remotestore.Backend on Redis.
//
// Records are CBOR strings. The directory tag index of each directory is a
// sorted set whose members are the tagged keys and whose scores are their
// timestamps in Unix milliseconds, so listings need a single ZRANGE. A second
// sorted set per owner serves owner tag queries. A record and its index
// memberships are written in one MULTI/EXEC.
package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/database/internal"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "rs:"

type Store struct {
	client *redis.Client
	prefix string
	clock  func() time.Time
}

// NewStore returns a Store whose keys all start with prefix.
func NewStore(client *redis.Client, prefix string) *Store {
	return newStore(client, prefix, nil)
}

func newStore(client *redis.Client, prefix string, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{client: client, prefix: prefix, clock: clock}
}

func backingStore(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, remotestore.ErrBackingStore, err)
}

func (s *Store) key(k []byte) string {
	return s.prefix + string(k)
}

func (s *Store) ownerIndexKey(owner string) string {
	return s.prefix + "t\x00" + owner
}

func (s *Store) grantOwnersKey() string {
	return s.prefix + "grant-owners"
}

func (s *Store) grantHashKey(owner string) string {
	return s.key(internal.GrantPrefix(owner))
}

func (s *Store) GetObject(ctx context.Context, owner, path string) (remotestore.StorageObject, error) {
	data, err := s.client.Get(ctx, s.key(internal.ObjectKey(owner, path))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return remotestore.StorageObject{}, remotestore.ErrNotFound
		}
		return remotestore.StorageObject{}, backingStore("get object", err)
	}

	obj, err := internal.DecodeObject(owner, path, data)
	if err != nil {
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

	member := internal.IndexMember(remotestore.KindObject, obj.Path)
	score := float64(internal.Millis(obj.LastModified))

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(internal.ObjectKey(obj.Owner, obj.Path)), data, 0)
		pipe.ZAdd(ctx, s.key(internal.IndexPrefix(obj.Owner, obj.Directory())), redis.Z{Score: score, Member: member})
		pipe.ZAdd(ctx, s.ownerIndexKey(obj.Owner), redis.Z{Score: score, Member: member})
		return nil
	})
	if err != nil {
		return remotestore.StorageObject{}, backingStore("put object", err)
	}
	return obj, nil
}

func (s *Store) DeleteObject(ctx context.Context, owner, path string) error {
	member := internal.IndexMember(remotestore.KindObject, path)

	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.key(internal.ObjectKey(owner, path)))
		pipe.ZRem(ctx, s.key(internal.IndexPrefix(owner, remotestore.Parent(path))), member)
		pipe.ZRem(ctx, s.ownerIndexKey(owner), member)
		return nil
	})
	if err != nil {
		return backingStore("delete object", err)
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("delete object: %w", remotestore.ErrNotFound)
	}
	return nil
}

func (s *Store) GetDirectory(ctx context.Context, owner, path string) (remotestore.DirectoryNode, error) {
	data, err := s.client.Get(ctx, s.key(internal.DirectoryKey(owner, path))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return remotestore.DirectoryNode{}, remotestore.ErrNotFound
		}
		return remotestore.DirectoryNode{}, backingStore("get directory", err)
	}

	node, err := internal.DecodeDirectory(owner, path, data)
	if err != nil {
		return remotestore.DirectoryNode{}, backingStore("get directory", err)
	}
	return node, nil
}

func (s *Store) UpsertDirectory(ctx context.Context, node remotestore.DirectoryNode) error {
	data, err := internal.EncodeDirectory(node)
	if err != nil {
		return fmt.Errorf("upsert directory: %w", err)
	}

	member := internal.IndexMember(remotestore.KindDirectory, node.Path)
	score := float64(internal.Millis(node.LastModified))

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(internal.DirectoryKey(node.Owner, node.Path)), data, 0)
		pipe.ZAdd(ctx, s.ownerIndexKey(node.Owner), redis.Z{Score: score, Member: member})
		if !node.IsRoot() {
			pipe.ZAdd(ctx, s.key(internal.IndexPrefix(node.Owner, node.Parent())), redis.Z{Score: score, Member: member})
		}
		return nil
	})
	if err != nil {
		return backingStore("upsert directory", err)
	}
	return nil
}

func (s *Store) DeleteDirectory(ctx context.Context, owner, path string) error {
	member := internal.IndexMember(remotestore.KindDirectory, path)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(internal.DirectoryKey(owner, path)))
		pipe.ZRem(ctx, s.ownerIndexKey(owner), member)
		if path != "" {
			pipe.ZRem(ctx, s.key(internal.IndexPrefix(owner, remotestore.Parent(path))), member)
		}
		return nil
	})
	if err != nil {
		return backingStore("delete directory", err)
	}
	return nil
}

func (s *Store) FindByTag(ctx context.Context, owner string, tag remotestore.Tag) ([]remotestore.IndexEntry, error) {
	var indexKey string
	switch tag.Name {
	case remotestore.TagDirectory:
		indexKey = s.key(internal.IndexPrefix(owner, tag.Value))
	case remotestore.TagOwner:
		if tag.Value != owner {
			return nil, nil
		}
		indexKey = s.ownerIndexKey(owner)
	default:
		return nil, fmt.Errorf("find by tag: %w: unknown tag %q", remotestore.ErrInvalidInput, tag.Name)
	}

	members, err := s.client.ZRangeWithScores(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, backingStore("find by tag", err)
	}

	entries := make([]remotestore.IndexEntry, 0, len(members))
	for _, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			return nil, backingStore("find by tag", fmt.Errorf("unexpected member type %T", z.Member))
		}
		kind, path, err := internal.ParseIndexMember(member)
		if err != nil {
			return nil, backingStore("find by tag", err)
		}
		entries = append(entries, remotestore.IndexEntry{
			Kind:         kind,
			Path:         path,
			LastModified: internal.FromMillis(int64(z.Score)),
		})
	}
	return entries, nil
}

func (s *Store) ResolveGrant(ctx context.Context, owner, token string) (remotestore.ScopeGrant, error) {
	data, err := s.client.HGet(ctx, s.grantHashKey(owner), token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return remotestore.ScopeGrant{}, remotestore.ErrNotFound
		}
		return remotestore.ScopeGrant{}, backingStore("resolve grant", err)
	}

	grant, err := internal.DecodeGrant(owner, token, data)
	if err != nil {
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

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.grantHashKey(grant.Owner), grant.Token, data)
		pipe.SAdd(ctx, s.grantOwnersKey(), grant.Owner)
		return nil
	})
	if err != nil {
		return backingStore("put grant", err)
	}
	return nil
}

func (s *Store) DeleteGrant(ctx context.Context, owner, token string) error {
	removed, err := s.client.HDel(ctx, s.grantHashKey(owner), token).Result()
	if err != nil {
		return backingStore("delete grant", err)
	}
	if removed == 0 {
		return fmt.Errorf("delete grant: %w", remotestore.ErrNotFound)
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, owner string) ([]remotestore.ScopeGrant, error) {
	owners := []string{owner}
	if owner == "" {
		var err error
		owners, err = s.client.SMembers(ctx, s.grantOwnersKey()).Result()
		if err != nil {
			return nil, backingStore("list grants", err)
		}
	}

	grants := make([]remotestore.ScopeGrant, 0)
	for _, o := range owners {
		fields, err := s.client.HGetAll(ctx, s.grantHashKey(o)).Result()
		if err != nil {
			return nil, backingStore("list grants", err)
		}
		for token, data := range fields {
			g, err := internal.DecodeGrant(o, token, []byte(data))
			if err != nil {
				return nil, backingStore("list grants", err)
			}
			grants = append(grants, g)
		}
	}

	sortGrants(grants)
	return grants, nil
}

func sortGrants(grants []remotestore.ScopeGrant) {
	slices.SortFunc(grants, func(a, b remotestore.ScopeGrant) int {
		return cmp.Or(strings.Compare(a.Owner, b.Owner), strings.Compare(a.Token, b.Token))
	})
}
