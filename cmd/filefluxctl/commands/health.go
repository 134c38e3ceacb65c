package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fileflux/fileflux/pkg/apiclient"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health",
	Long: `Check the server health endpoint and show the state of each backing
service.

Examples:
  # Check health of the default server
  filefluxctl health

  # Check a specific server
  filefluxctl health --server http://fileflux.internal:3000`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	health, err := client().GetHealth()
	if err != nil {
		// A degraded server answers 503 with a regular health body. Treat
		// that as a displayable result, not a transport failure.
		var apiErr *apiclient.APIError
		if !errors.As(err, &apiErr) {
			return fmt.Errorf("server unreachable: %w", err)
		}
		health = apiErr.Health()
		if health == nil {
			return fmt.Errorf("health check failed: %w", err)
		}
	}

	return printOutput(health, func() {
		fmt.Printf("Status: %s\n", health.Status)
		for name, state := range health.Services {
			fmt.Printf("  %-8s %s\n", name+":", state)
		}
	})
}
