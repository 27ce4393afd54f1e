package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focalapp/focal/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println(renderPass("✓"), "Wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println(renderHeader("Configuration"))
		fmt.Printf("  Data dir:          %s\n", cfg.DataDir)
		fmt.Printf("  Database:          %s\n", cfg.DatabasePath())
		fmt.Printf("  Remote:            %s\n", cfg.Remote.BaseURL)
		fmt.Printf("  Pull interval:     %v\n", cfg.Sync.PullInterval)
		fmt.Printf("  Drain batch size:  %d\n", cfg.Sync.DrainBatchSize)
		fmt.Printf("  Max retries:       %d\n", cfg.Sync.MaxRetries)
		fmt.Printf("  Base delay:        %v\n", cfg.Sync.BaseDelay)
		fmt.Printf("  Settings debounce: %v\n", cfg.Sync.SettingsDebounce)
		fmt.Printf("  Dashboard:         enabled=%v port=%d\n", cfg.Dashboard.Enabled, cfg.Dashboard.Port)
		fmt.Printf("  Legacy file:       %s\n", cfg.Legacy.Path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
