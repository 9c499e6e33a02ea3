// Package postgres implements remotestore.Backend on PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/remotestore"
)

type Repo struct {
	pool   *pgxpool.Pool
	tables remotestore.Tables
}

func NewRepo(pool *pgxpool.Pool, tables remotestore.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tables: tables}, nil
}

func backingStore(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, remotestore.ErrBackingStore, err)
}

func (r *Repo) objects() string     { return pgx.Identifier{r.tables.Objects}.Sanitize() }
func (r *Repo) directories() string { return pgx.Identifier{r.tables.Directories}.Sanitize() }
func (r *Repo) grants() string      { return pgx.Identifier{r.tables.Grants}.Sanitize() }

func (r *Repo) GetObject(ctx context.Context, owner, path string) (remotestore.StorageObject, error) {
	query := fmt.Sprintf(`
		SELECT content_type, content, is_binary, etag, size_bytes, last_modified
		FROM %s
		WHERE owner = $1 AND path = $2
	`, r.objects())

	obj := remotestore.StorageObject{Owner: owner, Path: path}
	err := r.pool.QueryRow(ctx, query, owner, path).Scan(
		&obj.ContentType, &obj.Content, &obj.Binary, &obj.ETag, &obj.Size, &obj.LastModified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return remotestore.StorageObject{}, remotestore.ErrNotFound
		}
		return remotestore.StorageObject{}, backingStore("get object", err)
	}

	obj.LastModified = obj.LastModified.UTC()
	return obj, nil
}

func (r *Repo) PutObject(ctx context.Context, obj remotestore.StorageObject) (remotestore.StorageObject, error) {
	obj.LastModified = time.Now().UTC().Truncate(time.Millisecond)

	query := fmt.Sprintf(`
		INSERT INTO %s (owner, path, directory, content_type, content, is_binary, etag, size_bytes, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner, path) DO UPDATE
		SET content_type = EXCLUDED.content_type,
			content = EXCLUDED.content,
			is_binary = EXCLUDED.is_binary,
			etag = EXCLUDED.etag,
			size_bytes = EXCLUDED.size_bytes,
			last_modified = EXCLUDED.last_modified
	`, r.objects())

	_, err := r.pool.Exec(ctx, query,
		obj.Owner, obj.Path, obj.Directory(), obj.ContentType, obj.Content, obj.Binary, obj.ETag, obj.Size,
		obj.LastModified,
	)
	if err != nil {
		return remotestore.StorageObject{}, backingStore("put object", err)
	}

	return obj, nil
}

func (r *Repo) DeleteObject(ctx context.Context, owner, path string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE owner = $1 AND path = $2`, r.objects())

	tag, err := r.pool.Exec(ctx, query, owner, path)
	if err != nil {
		return backingStore("delete object", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete object: %w", remotestore.ErrNotFound)
	}

	return nil
}

func (r *Repo) GetDirectory(ctx context.Context, owner, path string) (remotestore.DirectoryNode, error) {
	query := fmt.Sprintf(`SELECT last_modified FROM %s WHERE owner = $1 AND path = $2`, r.directories())

	node := remotestore.DirectoryNode{Owner: owner, Path: path}
	err := r.pool.QueryRow(ctx, query, owner, path).Scan(&node.LastModified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return remotestore.DirectoryNode{}, remotestore.ErrNotFound
		}
		return remotestore.DirectoryNode{}, backingStore("get directory", err)
	}

	node.LastModified = node.LastModified.UTC()
	return node, nil
}

func (r *Repo) UpsertDirectory(ctx context.Context, node remotestore.DirectoryNode) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner, path, parent, last_modified)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, path) DO UPDATE
		SET parent = EXCLUDED.parent,
			last_modified = EXCLUDED.last_modified
	`, r.directories())

	var parent *string
	if !node.IsRoot() {
		p := node.Parent()
		parent = &p
	}

	if _, err := r.pool.Exec(ctx, query, node.Owner, node.Path, parent, node.LastModified.UTC()); err != nil {
		return backingStore("upsert directory", err)
	}

	return nil
}

func (r *Repo) DeleteDirectory(ctx context.Context, owner, path string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE owner = $1 AND path = $2`, r.directories())

	if _, err := r.pool.Exec(ctx, query, owner, path); err != nil {
		return backingStore("delete directory", err)
	}

	return nil
}

func (r *Repo) FindByTag(ctx context.Context, owner string, tag remotestore.Tag) ([]remotestore.IndexEntry, error) {
	var query string
	var args []any

	switch tag.Name {
	case remotestore.TagDirectory:
		query = fmt.Sprintf(`
			SELECT 'object', path, last_modified FROM %s WHERE owner = $1 AND directory = $2
			UNION ALL
			SELECT 'directory', path, last_modified FROM %s WHERE owner = $1 AND parent = $2
		`, r.objects(), r.directories())
		args = []any{owner, tag.Value}
	case remotestore.TagOwner:
		if tag.Value != owner {
			return nil, nil
		}
		query = fmt.Sprintf(`
			SELECT 'object', path, last_modified FROM %s WHERE owner = $1
			UNION ALL
			SELECT 'directory', path, last_modified FROM %s WHERE owner = $1
		`, r.objects(), r.directories())
		args = []any{owner}
	default:
		return nil, fmt.Errorf("find by tag: %w: unknown tag %q", remotestore.ErrInvalidInput, tag.Name)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, backingStore("find by tag", err)
	}
	defer rows.Close()

	entries := make([]remotestore.IndexEntry, 0)
	for rows.Next() {
		var kind string
		var e remotestore.IndexEntry
		if err := rows.Scan(&kind, &e.Path, &e.LastModified); err != nil {
			return nil, backingStore("find by tag: scan", err)
		}
		e.Kind = remotestore.EntryKind(kind)
		e.LastModified = e.LastModified.UTC()
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, backingStore("find by tag: rows", err)
	}

	return entries, nil
}

func (r *Repo) ResolveGrant(ctx context.Context, owner, token string) (remotestore.ScopeGrant, error) {
	query := fmt.Sprintf(`SELECT grants FROM %s WHERE owner = $1 AND token = $2`, r.grants())

	var raw []string
	err := r.pool.QueryRow(ctx, query, owner, token).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return remotestore.ScopeGrant{}, remotestore.ErrNotFound
		}
		return remotestore.ScopeGrant{}, backingStore("resolve grant", err)
	}

	return decodeGrant(owner, token, raw)
}

func (r *Repo) PutGrant(ctx context.Context, grant remotestore.ScopeGrant) error {
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("put grant: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner, token, grants) VALUES ($1, $2, $3)
		ON CONFLICT (owner, token) DO UPDATE SET grants = EXCLUDED.grants
	`, r.grants())

	if _, err := r.pool.Exec(ctx, query, grant.Owner, grant.Token, remotestore.GrantStrings(grant.Grants)); err != nil {
		return backingStore("put grant", err)
	}

	return nil
}

func (r *Repo) DeleteGrant(ctx context.Context, owner, token string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE owner = $1 AND token = $2`, r.grants())

	tag, err := r.pool.Exec(ctx, query, owner, token)
	if err != nil {
		return backingStore("delete grant", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete grant: %w", remotestore.ErrNotFound)
	}

	return nil
}

func (r *Repo) ListGrants(ctx context.Context, owner string) ([]remotestore.ScopeGrant, error) {
	query := fmt.Sprintf(`
		SELECT owner, token, grants FROM %s
		WHERE $1 = '' OR owner = $1
		ORDER BY owner, token
	`, r.grants())

	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, backingStore("list grants", err)
	}
	defer rows.Close()

	grants := make([]remotestore.ScopeGrant, 0)
	for rows.Next() {
		var grantOwner, token string
		var raw []string
		if err := rows.Scan(&grantOwner, &token, &raw); err != nil {
			return nil, backingStore("list grants: scan", err)
		}

		g, err := decodeGrant(grantOwner, token, raw)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, backingStore("list grants: rows", err)
	}

	return grants, nil
}

func decodeGrant(owner, token string, raw []string) (remotestore.ScopeGrant, error) {
	grants, err := remotestore.ParseGrants(raw)
	if err != nil {
		return remotestore.ScopeGrant{}, backingStore("decode grant", err)
	}
	return remotestore.ScopeGrant{Owner: owner, Token: token, Grants: grants}, nil
}
