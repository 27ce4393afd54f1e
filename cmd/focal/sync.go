package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/focalapp/focal/internal/bus"
	"github.com/focalapp/focal/internal/config"
	"github.com/focalapp/focal/internal/syncd"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync management",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Request an immediate sync",
	Long: `Request an immediate sync.

By default this touches the daemon's trigger file, asking a running
daemon to pull and drain right away. With --standalone the sync runs
in this process instead, useful when no daemon is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		standalone, _ := cmd.Flags().GetBool("standalone")
		if !standalone {
			if err := syncd.Touch(cfg.DataDir); err != nil {
				return err
			}
			fmt.Println(renderPass("✓"), "Sync requested")
			return nil
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		return runStandaloneSync(cfg, timeout)
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := newApp(ctx, cfg, cfg.NewLogger("[focal] "))
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.store.SessionCountContext(ctx)
		if err != nil {
			return err
		}
		projects, err := a.store.ProjectCountContext(ctx)
		if err != nil {
			return err
		}
		depth, err := a.queue.Depth(ctx)
		if err != nil {
			return err
		}
		dead, err := a.queue.DeadLetters(ctx)
		if err != nil {
			return err
		}
		pendingSessions, err := a.store.ListSessionsNeedingSync(ctx)
		if err != nil {
			return err
		}
		pendingProjects, err := a.store.ListProjectsNeedingSync(ctx)
		if err != nil {
			return err
		}
		lastPull, err := a.store.GetMetaTime(ctx, "sync:last_pull_at")
		if err != nil {
			return err
		}

		fmt.Println(renderHeader("Sync status"))
		fmt.Printf("  Database:       %s\n", a.store.Path())
		fmt.Printf("  Sessions:       %d (%d needing sync)\n", sessions, len(pendingSessions))
		fmt.Printf("  Projects:       %d (%d needing sync)\n", projects, len(pendingProjects))
		fmt.Printf("  Queue depth:    %d\n", depth)
		if lastPull.IsZero() {
			fmt.Printf("  Last pull:      never\n")
		} else {
			fmt.Printf("  Last pull:      %s\n", lastPull.Local().Format(time.RFC1123))
		}
		if len(dead) > 0 {
			fmt.Printf("  %s %d dropped changes (see focal sync deadletters)\n", renderWarn("!"), len(dead))
		}
		return nil
	},
}

var syncDeadLettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "List changes dropped after exhausting retries",
	Long: `List queued changes that were dropped after exhausting their retries.

These mutations never reached the server and will not be retried; the
local copy of the entity is unaffected. A later edit to the same entity
re-enters the normal sync path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := newApp(ctx, cfg, cfg.NewLogger("[focal] "))
		if err != nil {
			return err
		}
		defer a.Close()

		letters, err := a.queue.DeadLetters(ctx)
		if err != nil {
			return err
		}
		if len(letters) == 0 {
			fmt.Println(renderPass("✓"), "No dropped changes")
			return nil
		}

		fmt.Println(renderHeader(fmt.Sprintf("%d dropped changes", len(letters))))
		for _, dl := range letters {
			fmt.Printf("  %s %s/%s %s (%d retries)\n",
				dl.DroppedAt.Local().Format("2006-01-02 15:04"),
				dl.EntityType, dl.EntityID, dl.Op, dl.RetryCount)
			if dl.LastError != "" {
				fmt.Printf("      last error: %s\n", renderWarn(dl.LastError))
			}
		}
		return nil
	},
}

// runStandaloneSync starts the service just long enough to finish one
// pull pass and queue drain, observed through bus events.
func runStandaloneSync(cfg *config.Config, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, cfg.NewLogger("[focal] "))
	if err != nil {
		return err
	}
	defer a.Close()

	done := make(chan struct{}, 1)
	failed := make(chan string, 1)
	unsubscribe := a.bus.Subscribe(func(e bus.Event) {
		switch ev := e.(type) {
		case bus.PullCompleted:
			select {
			case done <- struct{}{}:
			default:
			}
		case bus.StateChanged:
			if ev.State == "error" {
				select {
				case failed <- ev.LastError:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	if err := a.service.Start(ctx); err != nil {
		return err
	}
	defer a.service.Stop()

	select {
	case <-done:
		fmt.Println(renderPass("✓"), "Sync complete")
		return nil
	case errText := <-failed:
		return fmt.Errorf("sync failed: %s", errText)
	case <-time.After(timeout):
		return fmt.Errorf("sync timed out after %v", timeout)
	}
}

func init() {
	syncNowCmd.Flags().Bool("standalone", false, "run the sync in this process instead of signalling the daemon")
	syncNowCmd.Flags().Duration("timeout", 60*time.Second, "standalone sync timeout")

	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncDeadLettersCmd)
}
