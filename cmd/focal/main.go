// Command focal is the sync engine CLI for the Focal timer app: it runs
// the sync daemon, performs one-shot syncs, migrates legacy data, and
// serves the monitoring dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/focalapp/focal/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "focal",
	Short: "Local-first sync engine for the Focal timer",
	Long: `focal keeps the local Focal database in sync with the remote service.

Local writes always succeed immediately; the sync engine pushes them in
the background, queues them durably while offline, and merges remote
changes with last-write-wins conflict resolution.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default "+config.DefaultPath()+")")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dashboardCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
