// Package sqlite implements remotestore.Backend using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sagarc03/remotestore"
)

type repo struct {
	db     *sql.DB
	tables remotestore.Tables
}

func backingStore(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, remotestore.ErrBackingStore, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func (r *repo) GetObject(ctx context.Context, owner, path string) (remotestore.StorageObject, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT content_type, content, is_binary, etag, size_bytes, last_modified
		FROM %s
		WHERE owner = ? AND path = ?`, quoteIdentifier(r.tables.Objects))

	obj := remotestore.StorageObject{Owner: owner, Path: path}
	var lastModified string

	err := r.db.QueryRowContext(ctx, query, owner, path).Scan(
		&obj.ContentType, &obj.Content, &obj.Binary, &obj.ETag, &obj.Size, &lastModified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return remotestore.StorageObject{}, remotestore.ErrNotFound
		}
		return remotestore.StorageObject{}, backingStore("get object", err)
	}

	obj.LastModified, err = parseTime(lastModified)
	if err != nil {
		return remotestore.StorageObject{}, backingStore("get object: parse last_modified", err)
	}

	return obj, nil
}

func (r *repo) PutObject(ctx context.Context, obj remotestore.StorageObject) (remotestore.StorageObject, error) {
	obj.LastModified = time.Now().UTC().Truncate(time.Millisecond)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (owner, path, directory, content_type, content, is_binary, etag, size_bytes, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, path) DO UPDATE
		SET content_type = excluded.content_type,
			content = excluded.content,
			is_binary = excluded.is_binary,
			etag = excluded.etag,
			size_bytes = excluded.size_bytes,
			last_modified = excluded.last_modified`, quoteIdentifier(r.tables.Objects))

	_, err := r.db.ExecContext(ctx, query,
		obj.Owner, obj.Path, obj.Directory(), obj.ContentType, obj.Content, obj.Binary, obj.ETag, obj.Size,
		formatTime(obj.LastModified),
	)
	if err != nil {
		return remotestore.StorageObject{}, backingStore("put object", err)
	}

	return obj, nil
}

func (r *repo) DeleteObject(ctx context.Context, owner, path string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE owner = ? AND path = ?`, quoteIdentifier(r.tables.Objects))

	result, err := r.db.ExecContext(ctx, query, owner, path)
	if err != nil {
		return backingStore("delete object", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return backingStore("delete object: rows affected", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete object: %w", remotestore.ErrNotFound)
	}

	return nil
}

func (r *repo) GetDirectory(ctx context.Context, owner, path string) (remotestore.DirectoryNode, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT last_modified FROM %s WHERE owner = ? AND path = ?`, quoteIdentifier(r.tables.Directories))

	var lastModified string
	err := r.db.QueryRowContext(ctx, query, owner, path).Scan(&lastModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return remotestore.DirectoryNode{}, remotestore.ErrNotFound
		}
		return remotestore.DirectoryNode{}, backingStore("get directory", err)
	}

	ts, err := parseTime(lastModified)
	if err != nil {
		return remotestore.DirectoryNode{}, backingStore("get directory: parse last_modified", err)
	}

	return remotestore.DirectoryNode{Owner: owner, Path: path, LastModified: ts}, nil
}

func (r *repo) UpsertDirectory(ctx context.Context, node remotestore.DirectoryNode) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (owner, path, parent, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner, path) DO UPDATE
		SET parent = excluded.parent,
			last_modified = excluded.last_modified`, quoteIdentifier(r.tables.Directories))

	var parent sql.NullString
	if !node.IsRoot() {
		parent = sql.NullString{String: node.Parent(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, node.Owner, node.Path, parent, formatTime(node.LastModified))
	if err != nil {
		return backingStore("upsert directory", err)
	}

	return nil
}

func (r *repo) DeleteDirectory(ctx context.Context, owner, path string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE owner = ? AND path = ?`, quoteIdentifier(r.tables.Directories))

	if _, err := r.db.ExecContext(ctx, query, owner, path); err != nil {
		return backingStore("delete directory", err)
	}

	return nil
}

func (r *repo) FindByTag(ctx context.Context, owner string, tag remotestore.Tag) ([]remotestore.IndexEntry, error) {
	var query string
	var args []any

	switch tag.Name {
	case remotestore.TagDirectory:
		query = fmt.Sprintf( //nolint:gosec // G201: table names are validated
			`SELECT 'object', path, last_modified FROM %s WHERE owner = ? AND directory = ?
			UNION ALL
			SELECT 'directory', path, last_modified FROM %s WHERE owner = ? AND parent = ?`,
			quoteIdentifier(r.tables.Objects), quoteIdentifier(r.tables.Directories))
		args = []any{owner, tag.Value, owner, tag.Value}
	case remotestore.TagOwner:
		if tag.Value != owner {
			return nil, nil
		}
		query = fmt.Sprintf( //nolint:gosec // G201: table names are validated
			`SELECT 'object', path, last_modified FROM %s WHERE owner = ?
			UNION ALL
			SELECT 'directory', path, last_modified FROM %s WHERE owner = ?`,
			quoteIdentifier(r.tables.Objects), quoteIdentifier(r.tables.Directories))
		args = []any{owner, owner}
	default:
		return nil, fmt.Errorf("find by tag: %w: unknown tag %q", remotestore.ErrInvalidInput, tag.Name)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, backingStore("find by tag", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]remotestore.IndexEntry, 0)
	for rows.Next() {
		var kind, path, lastModified string
		if scanErr := rows.Scan(&kind, &path, &lastModified); scanErr != nil {
			return nil, backingStore("find by tag: scan", scanErr)
		}

		ts, parseErr := parseTime(lastModified)
		if parseErr != nil {
			return nil, backingStore("find by tag: parse last_modified", parseErr)
		}

		entries = append(entries, remotestore.IndexEntry{
			Kind:         remotestore.EntryKind(kind),
			Path:         path,
			LastModified: ts,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, backingStore("find by tag: rows", err)
	}

	return entries, nil
}

func (r *repo) ResolveGrant(ctx context.Context, owner, token string) (remotestore.ScopeGrant, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT grants FROM %s WHERE owner = ? AND token = ?`, quoteIdentifier(r.tables.Grants))

	var raw string
	err := r.db.QueryRowContext(ctx, query, owner, token).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return remotestore.ScopeGrant{}, remotestore.ErrNotFound
		}
		return remotestore.ScopeGrant{}, backingStore("resolve grant", err)
	}

	return decodeGrant(owner, token, raw)
}

func (r *repo) PutGrant(ctx context.Context, grant remotestore.ScopeGrant) error {
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("put grant: %w", err)
	}

	raw, err := json.Marshal(remotestore.GrantStrings(grant.Grants))
	if err != nil {
		return fmt.Errorf("put grant: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (owner, token, grants) VALUES (?, ?, ?)
		ON CONFLICT (owner, token) DO UPDATE SET grants = excluded.grants`, quoteIdentifier(r.tables.Grants))

	if _, err := r.db.ExecContext(ctx, query, grant.Owner, grant.Token, string(raw)); err != nil {
		return backingStore("put grant", err)
	}

	return nil
}

func (r *repo) DeleteGrant(ctx context.Context, owner, token string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE owner = ? AND token = ?`, quoteIdentifier(r.tables.Grants))

	result, err := r.db.ExecContext(ctx, query, owner, token)
	if err != nil {
		return backingStore("delete grant", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return backingStore("delete grant: rows affected", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete grant: %w", remotestore.ErrNotFound)
	}

	return nil
}

func (r *repo) ListGrants(ctx context.Context, owner string) ([]remotestore.ScopeGrant, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT owner, token, grants FROM %s
		WHERE ? = '' OR owner = ?
		ORDER BY owner, token`, quoteIdentifier(r.tables.Grants))

	rows, err := r.db.QueryContext(ctx, query, owner, owner)
	if err != nil {
		return nil, backingStore("list grants", err)
	}
	defer func() { _ = rows.Close() }()

	grants := make([]remotestore.ScopeGrant, 0)
	for rows.Next() {
		var grantOwner, token, raw string
		if scanErr := rows.Scan(&grantOwner, &token, &raw); scanErr != nil {
			return nil, backingStore("list grants: scan", scanErr)
		}

		g, decodeErr := decodeGrant(grantOwner, token, raw)
		if decodeErr != nil {
			return nil, decodeErr
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, backingStore("list grants: rows", err)
	}

	return grants, nil
}

func decodeGrant(owner, token, raw string) (remotestore.ScopeGrant, error) {
	var ss []string
	if err := json.Unmarshal([]byte(raw), &ss); err != nil {
		return remotestore.ScopeGrant{}, backingStore("decode grant", err)
	}

	grants, err := remotestore.ParseGrants(ss)
	if err != nil {
		return remotestore.ScopeGrant{}, backingStore("decode grant", err)
	}

	return remotestore.ScopeGrant{Owner: owner, Token: token, Grants: grants}, nil
}
