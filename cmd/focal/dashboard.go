package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/focalapp/focal/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the standalone WebSocket dashboard",
	Long: `Start a WebSocket dashboard server without the sync daemon.

The dashboard broadcasts sync activity to connected clients:
- entity_update: a session or project changed locally
- pull_complete: a pull pass finished
- queue_drained: a queue drain pass finished
- change_dropped: a queued change was dead-lettered
- state_change: the sync service changed state
- stats: local record counts and queue depth

Normally the daemon serves the dashboard itself (dashboard.enabled in
the config); this command is for running it separately.

Connect with a WebSocket client:
  ws://localhost:8484/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Dashboard.Port
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: cfg.NewLogger("[dashboard] "),
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().Int("port", 0, "port to listen on (default from config)")
}
