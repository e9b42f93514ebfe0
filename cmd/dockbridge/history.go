package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/uebliche/dockbridge/internal/report"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		format  string
		addr    string
		timeout time.Duration
		query   report.HistoryQuery
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent registry changes of a running dockbridge",
		Long: `Reads the event ledger of a running dockbridge. Without filters the
newest entries are shown first; --pass lists one reconciliation pass in
the order its changes were applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q, want table or json", format)
			}
			if addr == "" {
				var err error
				if addr, err = statusAddr(*configPath); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			entries, raw, err := report.FetchHistory(ctx, &http.Client{}, addr, query)
			if err != nil {
				return err
			}
			if format == "json" {
				_, err := cmd.OutOrStdout().Write(raw)
				return err
			}
			report.RenderHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	cmd.Flags().StringVar(&addr, "addr", "", "Status server URL (defaults to the configured healthcheck address)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	cmd.Flags().StringVar(&query.PassID, "pass", "", "Only show entries of this pass")
	cmd.Flags().StringVarP(&query.EventType, "type", "t", "", "Only show this event type (registered, updated, unregistered, apply_failed, discovery_failed, pass_applied)")
	cmd.Flags().IntVarP(&query.Limit, "limit", "n", 20, "Maximum number of entries")
	return cmd
}
