package cmd

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rubiojr/margin/pkg/config"
	"github.com/rubiojr/margin/pkg/importer"
	"github.com/rubiojr/margin/pkg/warehouse"
	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import browser history from the configured importers",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "only",
				Usage: "Run only this importer. Can be used multiple times",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runImport(ctx, c, c.StringSlice("only"))
		},
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "Show configured importers",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := config.LoadConfig(c.String("config"))
					if err != nil {
						return fmt.Errorf("loading config: %w", err)
					}
					out := output(c)
					if len(cfg.Importers) == 0 {
						fmt.Fprintln(out, "No importers configured. Add one with: margin import add")
						return nil
					}
					for _, name := range cfg.ImporterNames() {
						info := cfg.Importers[name]
						fmt.Fprintf(out, "%s (%s, every %v): %s\n", name, info.Type, cfg.ImporterInterval(name), info.Path)
					}
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "Add an importer to the configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Importer name", Required: true},
					&cli.StringFlag{Name: "type", Usage: "chromium or firefox", Required: true},
					&cli.StringFlag{Name: "path", Usage: "Path to the History or places.sqlite file", Required: true},
					&cli.DurationFlag{Name: "interval", Usage: "How often serve runs the import"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					configPath := c.String("config")
					cfg, err := config.LoadConfig(configPath)
					if err != nil {
						return fmt.Errorf("loading config: %w", err)
					}
					var interval *config.Duration
					if c.IsSet("interval") {
						interval = &config.Duration{Duration: c.Duration("interval")}
					}
					cfg.AddImporter(c.String("name"), c.String("type"), c.String("path"), interval)
					if err := cfg.Validate(); err != nil {
						return err
					}
					if err := cfg.SaveConfig(configPath); err != nil {
						return fmt.Errorf("saving config: %w", err)
					}
					fmt.Fprintf(output(c), "Added importer %s\n", c.String("name"))
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove an importer from the configuration",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.Args().First()
					configPath := c.String("config")
					cfg, err := config.LoadConfig(configPath)
					if err != nil {
						return fmt.Errorf("loading config: %w", err)
					}
					if _, ok := cfg.Importers[name]; !ok {
						return fmt.Errorf("importer %q is not configured", name)
					}
					cfg.RemoveImporter(name)
					if err := cfg.SaveConfig(configPath); err != nil {
						return fmt.Errorf("saving config: %w", err)
					}
					fmt.Fprintf(output(c), "Removed importer %s\n", name)
					return nil
				},
			},
		},
	}
}

// runImport runs every configured importer once and prints a report per
// importer.
func runImport(ctx context.Context, c *cli.Command, only []string) error {
	cfg, store, err := openStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)

	importers, err := importersFromConfig(cfg)
	if err != nil {
		return err
	}
	if len(importers) == 0 {
		return fmt.Errorf("no importers configured, add one with: margin import add")
	}

	wh := warehouse.NewWarehouse(warehouse.Config{}, store)
	for _, imp := range importers {
		if err := wh.AddImporter(imp, cfg.ImporterInterval(imp.Name())); err != nil {
			return err
		}
	}

	var (
		mu    sync.Mutex
		names []string
	)
	start := time.Now()
	reports, err := wh.FetchOnce(ctx, warehouse.Only(only...), warehouse.WithReports(func(name string, _ importer.Report) {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
	}))

	sort.Strings(names)
	out := output(c)
	for _, name := range names {
		r := reports[name]
		fmt.Fprintf(out, "%s: %d pages, %d visits, %d bookmarks (%d skipped)\n", name, r.Pages, r.Visits, r.Bookmarks, r.Skipped)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Import finished in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}
