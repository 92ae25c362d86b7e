package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/margin/pkg/storage"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Database optimization and maintenance commands",
		Action: func(ctx context.Context, c *cli.Command) error {
			return withStore(ctx, c, "Optimizing database", func(store *storage.Store) error {
				return store.Optimize(ctx)
			})
		},
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Run integrity checks on the database",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "quick",
						Usage: "Skip the full-text index checks",
						Value: false,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					err := withStore(ctx, c, "Checking database", func(store *storage.Store) error {
						return store.IntegrityCheck(ctx, !c.Bool("quick"))
					})
					if err != nil {
						fmt.Fprintln(output(c), "To fix full-text index problems, run: margin optimize fts-rebuild")
					}
					return err
				},
			},
			{
				Name:  "fts-rebuild",
				Usage: "Rebuild the full-text indexes from the stored pages and annotations",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, "Rebuilding full-text indexes", func(store *storage.Store) error {
						return store.RebuildFullText(ctx)
					})
				},
			},
			{
				Name:  "analyze",
				Usage: "Run ANALYZE to update query planner statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, "Analyzing database", func(store *storage.Store) error {
						return store.Analyze(ctx)
					})
				},
			},
			{
				Name:  "vacuum",
				Usage: "Run VACUUM to defragment the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					var before, after *storage.Stats
					err := withStore(ctx, c, "Vacuuming database", func(store *storage.Store) error {
						var err error
						if before, err = store.Stats(ctx); err != nil {
							return err
						}
						if err := store.Vacuum(ctx); err != nil {
							return err
						}
						after, err = store.Stats(ctx)
						return err
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(output(c), "Size: %s -> %s\n", formatBytes(before.SizeBytes), formatBytes(after.SizeBytes))
					return nil
				},
			},
		},
	}
}

// withStore opens the configured database, runs fn and reports how long
// it took.
func withStore(ctx context.Context, c *cli.Command, what string, fn func(*storage.Store) error) error {
	_, store, err := openStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)

	out := output(c)
	fmt.Fprintf(out, "%s... ", what)
	start := time.Now()
	if err := fn(store); err != nil {
		fmt.Fprintf(out, "✗ FAILED\n")
		return err
	}
	fmt.Fprintf(out, "✓ done in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}
