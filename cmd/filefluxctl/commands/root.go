// Package commands implements the filefluxctl client CLI.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fileflux/fileflux/pkg/apiclient"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	serverURL    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "filefluxctl",
	Short: "FileFlux client",
	Long: `filefluxctl is the command-line client for a FileFlux server.

Use it to upload files, queue processing jobs, and inspect files and
jobs through the FileFlux REST API.

Use "filefluxctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultServer := os.Getenv("FILEFLUX_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:3000"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Server URL (env: FILEFLUX_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(healthCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func client() *apiclient.Client {
	return apiclient.New(serverURL)
}

// printOutput renders v as JSON when requested, otherwise calls the
// table renderer.
func printOutput(v any, table func()) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if outputFormat != "table" {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	table()
	return nil
}
