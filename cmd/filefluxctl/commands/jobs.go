package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fileflux/fileflux/internal/cli/output"
	"github.com/fileflux/fileflux/pkg/apiclient"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect processing jobs",
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <jobID>",
	Short: "Show one job",
	Long: `Show a processing job with its progress counters, recent parse
errors, and terminal result.

Examples:
  # Show a job
  filefluxctl jobs get 6895f1a2c3d4e5f601234567

  # Show as JSON
  filefluxctl jobs get 6895f1a2c3d4e5f601234567 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsGet,
}

func init() {
	jobsCmd.AddCommand(jobsGetCmd)
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	job, err := client().GetJob(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	return printOutput(job, func() { printJob(job) })
}

func printJob(job *apiclient.Job) {
	fmt.Printf("Job:      %s\n", job.JobID)
	fmt.Printf("File:     %s\n", job.FileID)
	fmt.Printf("State:    %s\n", job.State)
	fmt.Printf("Attempts: %d\n", job.Attempts)
	if job.WorkerID != nil {
		fmt.Printf("Worker:   %s\n", *job.WorkerID)
	}
	fmt.Printf("Progress: %d lines, %d records, %d errors\n",
		job.Progress.LinesProcessed, job.Progress.RecordsInserted, job.Progress.ErrorCount)

	if job.Result != nil {
		if job.Result.Success {
			fmt.Println("Result:   success")
		} else {
			fmt.Printf("Result:   failed (%s)\n", job.Result.Error)
		}
	}

	if len(job.Errors) > 0 {
		fmt.Println()
		fmt.Printf("Recent errors (%d):\n", len(job.Errors))
		rows := make([][]string, 0, len(job.Errors))
		for _, e := range job.Errors {
			rows = append(rows, []string{e.Timestamp.Local().Format("15:04:05"), e.Message})
		}
		output.PrintTable(os.Stdout, []string{"TIME", "MESSAGE"}, rows)
	}
}
