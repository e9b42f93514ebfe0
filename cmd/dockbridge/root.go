package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

// newRootCmd builds the dockbridge command tree.
func newRootCmd(version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "dockbridge",
		Short: "Register labelled Docker containers as proxy backend servers",
		Long: `dockbridge watches the Docker daemon for containers carrying the
auto-register label and keeps the proxy's server registry in sync with them.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "dockbridge version %s\n" .Version}}`)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to configuration file")

	root.AddCommand(
		newRunCmd(&configPath, version),
		newStatusCmd(&configPath),
		newHistoryCmd(&configPath),
		newVersionCmd(version),
	)
	return root
}
