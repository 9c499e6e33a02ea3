package main

import (
	"os"

	"github.com/sagarc03/remotestore/clientcli"
	"github.com/spf13/cobra"
)

var (
	uploadRecursive   bool
	uploadContentType string
	uploadIfMatch     string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [remote-path]",
	Short: "Upload files to the server",
	Long: `Upload files to the owner's storage.

The remote path defaults to the local path with leading "./", "/" and "../"
segments removed. JSON documents are compacted by the server; documents that
are not valid UTF-8 text are stored as binary.

Examples:
  remotestore-cli upload ./today.json tasks/today.json
  remotestore-cli upload -r ./notes/ documents/notes/
  remotestore-cli upload --if-match 5d41402a tasks/today.json tasks/today.json
  remotestore-cli upload --content-type application/json ./data public/data`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload directory recursively")
	uploadCmd.Flags().StringVar(&uploadContentType, "content-type", "", "override content-type")
	uploadCmd.Flags().StringVar(&uploadIfMatch, "if-match", "", "only overwrite when the stored ETag matches")
}

func runUpload(cmd *cobra.Command, args []string) error {
	opts := clientcli.UploadOptions{
		LocalPath:   args[0],
		ContentType: uploadContentType,
		Recursive:   uploadRecursive,
		IfMatch:     uploadIfMatch,
	}
	if len(args) > 1 {
		opts.RemotePath = args[1]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Upload(cmd.Context(), opts)
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return &exitError{code: 1}
		}
	}

	return nil
}
