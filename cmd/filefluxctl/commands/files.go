package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fileflux/fileflux/internal/cli/output"
	"github.com/fileflux/fileflux/pkg/apiclient"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Inspect uploaded files",
}

var (
	filesListSkip   int64
	filesListLimit  int64
	filesListStatus string
)

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded files",
	Long: `List uploaded files, newest first.

Examples:
  # List the most recent files
  filefluxctl files list

  # List only processed files
  filefluxctl files list --status processed

  # Page through results
  filefluxctl files list --skip 50 --limit 50`,
	RunE: runFilesList,
}

var filesGetCmd = &cobra.Command{
	Use:   "get <fileID>",
	Short: "Show one file with its jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesGet,
}

func init() {
	filesListCmd.Flags().Int64Var(&filesListSkip, "skip", 0, "Number of files to skip")
	filesListCmd.Flags().Int64Var(&filesListLimit, "limit", 50, "Maximum number of files to return")
	filesListCmd.Flags().StringVar(&filesListStatus, "status", "", "Filter by status (uploaded|processed)")

	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesGetCmd)
}

func runFilesList(cmd *cobra.Command, args []string) error {
	list, err := client().ListFiles(filesListSkip, filesListLimit, filesListStatus)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	return printOutput(list, func() {
		if len(list.Files) == 0 {
			fmt.Println("No files found.")
			return
		}
		output.PrintTable(os.Stdout, fileHeaders(), fileRows(list.Files))
	})
}

func runFilesGet(cmd *cobra.Command, args []string) error {
	detail, err := client().GetFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch file: %w", err)
	}

	return printOutput(detail, func() {
		f := detail.File
		fmt.Printf("File:     %s\n", f.FileID)
		fmt.Printf("Name:     %s\n", f.OriginalName)
		fmt.Printf("Key:      %s\n", f.Key)
		fmt.Printf("Size:     %d\n", f.Size)
		fmt.Printf("Type:     %s\n", f.ContentType)
		fmt.Printf("Status:   %s\n", f.Status)
		fmt.Printf("Created:  %s\n", f.CreatedAt.Local().Format("2006-01-02 15:04:05"))

		if len(detail.Jobs) == 0 {
			return
		}
		fmt.Println()
		rows := make([][]string, 0, len(detail.Jobs))
		for _, j := range detail.Jobs {
			rows = append(rows, []string{
				j.JobID,
				j.State,
				fmt.Sprintf("%d", j.Attempts),
				fmt.Sprintf("%d", j.Progress.LinesProcessed),
				fmt.Sprintf("%d", j.Progress.RecordsInserted),
				fmt.Sprintf("%d", j.Progress.ErrorCount),
			})
		}
		output.PrintTable(os.Stdout, []string{"JOB", "STATE", "ATTEMPTS", "LINES", "RECORDS", "ERRORS"}, rows)
	})
}

func fileHeaders() []string {
	return []string{"FILE ID", "NAME", "SIZE", "TYPE", "STATUS", "CREATED"}
}

func fileRows(files []apiclient.File) [][]string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			f.FileID,
			f.OriginalName,
			fmt.Sprintf("%d", f.Size),
			f.ContentType,
			f.Status,
			f.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}
