package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <fileID>",
	Short: "Queue a processing job for a file",
	Long: `Queue a processing job for an uploaded file.

The server parses the file line by line in the background. Use
"filefluxctl jobs get" to follow progress.

Examples:
  # Queue processing for a file
  filefluxctl process 6895f1a2c3d4e5f601234567`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	res, err := client().Process(args[0])
	if err != nil {
		return fmt.Errorf("failed to queue job: %w", err)
	}

	return printOutput(res, func() {
		fmt.Printf("Job ID: %s\n", res.JobID)
		fmt.Printf("State:  %s\n", res.State)
		fmt.Printf("Queued: %s\n", res.QueuedAt.Local().Format("2006-01-02 15:04:05"))
	})
}
