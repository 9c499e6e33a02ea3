package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/config"
	"github.com/sagarc03/remotestore/grants"
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Manage bearer tokens and their scopes",
	Long: `Provision the grants that map (owner, token) pairs to category scopes.

Grant strings take the forms:
  rw | r                 root grant, covers every category
  <category>:rw          read-write on a category
  <category>:r           read-only on a category
  <category>             legacy form, read-write`,
}

var grantAddCmd = &cobra.Command{
	Use:   "add --owner <owner> <grant> [grant] ...",
	Short: "Create or replace a grant",
	Long: `Create or replace the grant for an owner and token. A random token is
generated and printed when --token is not given.

Examples:
  remotestore grant add --owner jimmy ":r" "documents:r" "tasks:rw"
  remotestore grant add --owner jimmy --token 123 tasks:rw`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGrantAdd,
}

var grantRemoveCmd = &cobra.Command{
	Use:   "remove --owner <owner> <token>",
	Short: "Revoke a token",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrantRemove,
}

var grantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List grants, optionally for one owner",
	Args:  cobra.NoArgs,
	RunE:  runGrantList,
}

var grantImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import grants from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrantImport,
}

var (
	grantOwner  string
	grantToken  string
	grantFormat string
)

func init() {
	grantAddCmd.Flags().StringVar(&grantOwner, "owner", "", "owner the token belongs to")
	grantAddCmd.Flags().StringVar(&grantToken, "token", "", "bearer token (default: generated)")
	_ = grantAddCmd.MarkFlagRequired("owner")

	grantRemoveCmd.Flags().StringVar(&grantOwner, "owner", "", "owner the token belongs to")
	_ = grantRemoveCmd.MarkFlagRequired("owner")

	grantListCmd.Flags().StringVar(&grantOwner, "owner", "", "only list grants of this owner")
	grantListCmd.Flags().StringVarP(&grantFormat, "output", "o", "yaml", "output format: yaml, json")

	grantCmd.AddCommand(grantAddCmd, grantRemoveCmd, grantListCmd, grantImportCmd)
	rootCmd.AddCommand(grantCmd)
}

func runGrantAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	token := grantToken
	if token == "" {
		token = grants.NewToken()
	}

	grant, err := grants.FromEntry(grants.Entry{Owner: grantOwner, Token: token, Grants: args})
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.GetRepo().PutGrant(cmd.Context(), grant); err != nil {
		return fmt.Errorf("add grant: %w", err)
	}

	slog.Info("grant added", "owner", grant.Owner, "grants", remotestore.GrantStrings(grant.Grants))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}

func runGrantRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	err = db.GetRepo().DeleteGrant(cmd.Context(), grantOwner, args[0])
	if errors.Is(err, remotestore.ErrNotFound) {
		return fmt.Errorf("no grant for owner %q with that token", grantOwner)
	}
	if err != nil {
		return fmt.Errorf("remove grant: %w", err)
	}

	slog.Info("grant removed", "owner", grantOwner)
	return nil
}

func runGrantList(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	list, err := db.GetRepo().ListGrants(cmd.Context(), grantOwner)
	if err != nil {
		return fmt.Errorf("list grants: %w", err)
	}

	entries := make([]grants.Entry, 0, len(list))
	for _, g := range list {
		entries = append(entries, grants.ToEntry(g))
	}

	return writeEntries(cmd.OutOrStdout(), grantFormat, entries)
}

func writeEntries(w io.Writer, format string, entries []grants.Entry) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(entries)
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}

func runGrantImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	n, err := grants.ImportFile(cmd.Context(), db.GetRepo(), args[0])
	if err != nil {
		return fmt.Errorf("import grants (%d written): %w", n, err)
	}
	return nil
}
