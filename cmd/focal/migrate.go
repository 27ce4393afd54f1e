package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/focalapp/focal/internal/legacy"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate legacy flat-file data into the local database",
	Long: `Migrate data from the legacy flat-file storage into the database.

Each record family (projects, sessions, settings, recent tasks) is
migrated at most once; a completion flag in the database prevents
re-runs. Migrated records keep their original ids and timestamps and
are marked as local, unsynced data so the sync engine pushes them.

Running migrate again after completion is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger("[migrate] ")

		ctx := context.Background()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		storage := legacy.OpenStorage(cfg.Legacy.Path)
		if storage.Empty() {
			fmt.Println(renderPass("✓"), "No legacy data found at", cfg.Legacy.Path)
			return nil
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			var confirmed bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Migrate legacy data from %s?", cfg.Legacy.Path)).
					Description("Existing database records are never overwritten.").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted")
				return nil
			}
		}

		migrator := legacy.NewMigrator(a.store, storage, logger)
		results := migrator.MigrateAll(ctx)

		fmt.Println(renderHeader("Migration results"))
		for _, family := range []string{"projects", "sessions", "settings", "recent_tasks"} {
			res, ok := results[family]
			if !ok {
				continue
			}
			if res.Skipped {
				fmt.Printf("  %-13s already migrated\n", family+":")
				continue
			}
			line := fmt.Sprintf("  %-13s %d migrated, %d duplicates skipped", family+":", res.Migrated, res.DuplicatesSkipped)
			if len(res.Errors) > 0 {
				line += " " + renderWarn(fmt.Sprintf("(%d errors)", len(res.Errors)))
			}
			fmt.Println(line)
			for _, e := range res.Errors {
				fmt.Printf("      %s\n", renderWarn(e.Error()))
			}
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}
