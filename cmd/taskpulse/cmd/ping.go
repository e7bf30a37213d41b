package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskhive/taskpulse/internal/agent"
	"github.com/taskhive/taskpulse/internal/api"
)

// pingTimeout bounds the connectivity check.
const pingTimeout = 15 * time.Second

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check TaskHive API connectivity",
	Long:  "Fetch the requester account using the configured credentials and print it.",
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := agent.ParseConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("taskpulse ping: %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}

	logger := setupLogger(cfg.LogLevel)
	client, err := api.NewClient(cfg.API, buildVersion, logger)
	if err != nil {
		return fmt.Errorf("taskpulse ping: create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
	defer cancel()

	requester, err := client.GetRequester(ctx)
	if err != nil {
		return fmt.Errorf("taskpulse ping: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Requester: %s (%s)\n", requester.PublicName, requester.ID)
	fmt.Fprintf(w, "Balance:   %.2f\n", requester.Balance)
	return nil
}
