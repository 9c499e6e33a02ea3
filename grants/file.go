// Package grants provisions ScopeGrants out of band: grants files, token
// generation and bulk import into a grant store.
package grants

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sagarc03/remotestore"
	"gopkg.in/yaml.v3"
)

// Entry is one grant record as written in a grants file.
type Entry struct {
	Owner  string   `json:"owner" yaml:"owner"`
	Token  string   `json:"token" yaml:"token"`
	Grants []string `json:"grants" yaml:"grants"`
}

// LoadFile loads grants from a YAML or JSON file. JSON is selected by the
// .json extension. The file holds a list of entries:
//
//	- owner: jimmy
//	  token: "123"
//	  grants: [":r", "documents:r", "tasks:rw"]
//
// Entries without an owner or token are skipped.
func LoadFile(path string) ([]remotestore.ScopeGrant, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read grants file: %w", err)
	}

	var entries []Entry
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &entries)
	} else {
		err = yaml.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parse grants file: %w", err)
	}

	out := make([]remotestore.ScopeGrant, 0, len(entries))
	seen := make(map[[2]string]struct{}, len(entries))
	for _, e := range entries {
		if e.Owner == "" || e.Token == "" {
			continue
		}

		id := [2]string{e.Owner, e.Token}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("grants file: owner %q: %w", e.Owner, ErrDuplicateGrant)
		}
		seen[id] = struct{}{}

		grant, err := FromEntry(e)
		if err != nil {
			return nil, fmt.Errorf("grants file: %w", err)
		}
		out = append(out, grant)
	}

	return out, nil
}

// FromEntry parses the grant strings of e.
func FromEntry(e Entry) (remotestore.ScopeGrant, error) {
	parsed, err := remotestore.ParseGrants(e.Grants)
	if err != nil {
		return remotestore.ScopeGrant{}, fmt.Errorf("owner %q: %w", e.Owner, err)
	}

	grant := remotestore.ScopeGrant{Owner: e.Owner, Token: e.Token, Grants: parsed}
	if err := grant.Validate(); err != nil {
		return remotestore.ScopeGrant{}, err
	}
	return grant, nil
}

// ToEntry renders g in its file form.
func ToEntry(g remotestore.ScopeGrant) Entry {
	return Entry{Owner: g.Owner, Token: g.Token, Grants: remotestore.GrantStrings(g.Grants)}
}
