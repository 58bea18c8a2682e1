package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/storage"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending schema migrations to the configured SQLite or Postgres
database. Use --check to only report pending migrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := storage.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ui := NewUI(cmd.OutOrStdout(), outputJSON, noColor)
			defer ui.Close()

			manager := storage.NewMigrationManager(db, cfg.Database.Driver, logger)

			var status *storage.MigrationStatus
			if check {
				status, err = manager.CheckMigrations(ctx)
			} else {
				status, err = manager.Migrate(ctx)
			}
			if err != nil {
				return err
			}

			if outputJSON {
				return ui.JSON(status)
			}
			if check && !status.UpToDate {
				ui.Warning("%d pending migration(s) on %s", len(status.Pending), cfg.Database.Driver)
				for _, name := range status.Pending {
					ui.Step("%s", name)
				}
				return nil
			}
			ui.Success("Database %s is up to date (%d migrations)", cfg.Database.Driver, status.Total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "report pending migrations without applying them")
	return cmd
}

// newImportCmd creates the import subcommand.
func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <faqs.yaml>",
		Short: "Import FAQs from a YAML catalog",
		Long: `Import creates or updates FAQs from a YAML catalog. Existing entries keep
their view and rating counters. Use --dry-run to validate without writing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadCatalog(args[0])
			if err != nil {
				return err
			}

			ui := NewUI(cmd.OutOrStdout(), outputJSON, noColor)
			if dryRun {
				defer ui.Close()
				if outputJSON {
					return ui.JSON(map[string]interface{}{"valid": true, "faqs": len(entries)})
				}
				ui.Success("Catalog is valid (%d FAQs)", len(entries))
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			bar := rt.ui.ProgressBar("Importing", int64(len(entries)))

			var created, updated int
			for i := range entries {
				isNew, err := rt.repos.FAQs.SaveFAQ(ctx, &entries[i])
				if err != nil {
					if bar != nil {
						bar.Abort(false)
					}
					return fmt.Errorf("save faq %q: %w", entries[i].ID, err)
				}
				if isNew {
					created++
				} else {
					updated++
				}
				if bar != nil {
					bar.Increment()
				}
			}

			if err := rt.engine.InvalidateCache(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to invalidate match cache")
			}

			logger.Info().
				Str("file", args[0]).
				Int("created", created).
				Int("updated", updated).
				Msg("Catalog imported")

			if outputJSON {
				return rt.ui.JSON(map[string]int{"created": created, "updated": updated})
			}
			rt.ui.Success("Imported %d FAQs (%d created, %d updated)", len(entries), created, updated)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the catalog without writing")
	return cmd
}

// newExportCmd creates the export subcommand.
func newExportCmd() *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "export <faqs.yaml>",
		Short: "Export the FAQ catalog to YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.repos.FAQs.ListFAQs(ctx, storage.FAQFilter{ActiveOnly: !includeInactive})
			if err != nil {
				return fmt.Errorf("list faqs: %w", err)
			}

			file, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer file.Close()

			bar := rt.ui.WriterBar("Exporting", int64(len(entries)))
			if err := writeCatalog(file, entries, func() { _ = bar.Add(1) }); err != nil {
				return err
			}
			_ = bar.Finish()

			if outputJSON {
				return rt.ui.JSON(map[string]interface{}{"file": args[0], "faqs": len(entries)})
			}
			rt.ui.Success("Exported %d FAQs to %s", len(entries), args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeInactive, "all", false, "include inactive FAQs")
	return cmd
}
