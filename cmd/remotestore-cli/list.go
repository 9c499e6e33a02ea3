package main

import (
	"os"

	"github.com/sagarc03/remotestore/clientcli"
	"github.com/spf13/cobra"
)

var listRecursive bool

var listCmd = &cobra.Command{
	Use:     "list [directory]",
	Aliases: []string{"ls"},
	Short:   "List a directory",
	Long: `List the documents and sub-directories of a directory.

Without an argument the owner's root directory is listed.

Examples:
  remotestore-cli list
  remotestore-cli list tasks/
  remotestore-cli list -r documents
  remotestore-cli list --json public/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listRecursive, "recursive", "r", false, "descend into sub-directories")
}

func runList(cmd *cobra.Command, args []string) error {
	opts := clientcli.ListOptions{Recursive: listRecursive}
	if len(args) > 0 {
		opts.Directory = args[0]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(cmd.Context(), opts)
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatList(os.Stdout, result)
}
