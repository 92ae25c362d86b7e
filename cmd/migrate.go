package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/margin/pkg/config"
	"github.com/rubiojr/margin/pkg/db"
	"github.com/rubiojr/margin/pkg/storage"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runMigrations(ctx, c, c.String("config"), c.Bool("status"))
		},
	}
}

func runMigrations(ctx context.Context, c *cli.Command, configPath string, statusOnly bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.OpenWithoutMigrations(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeStore(store)

	out := output(c)
	manager := db.NewMigrationManager(store.DB())
	if !statusOnly {
		applied, err := manager.ApplyPending(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Applied %d migrations to %s\n", applied, store.Path())
		return nil
	}

	status, err := manager.Status(ctx)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	fmt.Fprintf(out, "Applied migrations: %d\n", len(status.Applied))
	for _, migration := range status.Applied {
		appliedTime := "unknown"
		if migration.AppliedAt != nil {
			appliedTime = migration.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "  ✓ %03d: %s (applied: %s)\n", migration.Version, migration.Name, appliedTime)
	}

	fmt.Fprintf(out, "Pending migrations: %d\n", len(status.Pending))
	for _, migration := range status.Pending {
		fmt.Fprintf(out, "  • %03d: %s\n", migration.Version, migration.Name)
	}
	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "  (none - database is up to date)")
	}
	return nil
}
