package main

import (
	"os"

	"github.com/sagarc03/remotestore/clientcli"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <remote-path> [remote-path...]",
	Aliases: []string{"rm"},
	Short:   "Delete documents from the server",
	Long: `Delete one or more documents from the owner's storage.

Directories that become empty are removed by the server.

Examples:
  remotestore-cli delete tasks/today.json
  remotestore-cli delete tasks/a.json tasks/b.json
  remotestore-cli delete -q tasks/old.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Paths: args})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}
