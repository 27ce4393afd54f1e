package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/focalapp/focal/internal/dashboard"
	"github.com/focalapp/focal/internal/syncd"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the sync daemon in the foreground.

The daemon:
  1. Performs an initial pull and drains the offline queue
  2. Pulls remote changes on a periodic timer
  3. Watches the trigger file so other processes can request an
     immediate sync (focal sync now touches it)
  4. Optionally serves the WebSocket dashboard

Stop with Ctrl+C or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger("[syncd] ")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Dashboard.Enabled {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: cfg.NewLogger("[dashboard] "),
			})
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer server.Stop()

			handler := dashboard.NewHandler(server, a.store, a.queue, logger)
			handler.Attach(a.bus)
			defer handler.Detach()
		}

		daemonCfg := syncd.DefaultConfig()
		daemonCfg.Logger = logger

		d, err := syncd.NewWithConfig(a.service, cfg.DataDir, daemonCfg)
		if err != nil {
			return err
		}
		return d.Start(ctx)
	},
}
