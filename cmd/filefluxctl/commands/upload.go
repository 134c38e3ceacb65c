package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file",
	Long: `Upload a local file to the server.

The file is streamed, so arbitrarily large files work without loading
them into memory.

Examples:
  # Upload a CSV file
  filefluxctl upload ./events.csv

  # Upload and print the response as JSON
  filefluxctl upload ./events.csv -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	res, err := client().UploadFile(args[0])
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	return printOutput(res, func() {
		fmt.Printf("Uploaded %s (%d bytes, %s)\n", res.Metadata.OriginalName, res.Metadata.Size, res.Metadata.ContentType)
		fmt.Printf("File ID: %s\n", res.FileID)
		fmt.Printf("Key:     %s\n", res.Key)
	})
}
