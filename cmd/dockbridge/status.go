package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/uebliche/dockbridge/internal/config"
	"github.com/uebliche/dockbridge/internal/report"
)

func newStatusCmd(configPath *string) *cobra.Command {
	var (
		format  string
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registrations of a running dockbridge",
		Long: `Queries the status endpoint of a running dockbridge and prints the
current label, duplicate strategy and registered servers.`,
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

			status, raw, err := report.Fetch(ctx, &http.Client{}, addr)
			if err != nil {
				return err
			}
			if format == "json" {
				_, err := cmd.OutOrStdout().Write(raw)
				return err
			}
			report.Render(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	cmd.Flags().StringVar(&addr, "addr", "", "Status server URL (defaults to the configured healthcheck address)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}

// statusAddr derives the status URL from the config's healthcheck section.
func statusAddr(configPath string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	host := cfg.Healthcheck.GetHost()
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Healthcheck.GetPort())), nil
}
