package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print statistics as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c, c.String("config"), c.Bool("json"))
		},
	}
}

// showStats displays storage statistics
func showStats(ctx context.Context, c *cli.Command, configPath string, asJSON bool) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(output(c))
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	formatStats(output(c), stats, time.Now())
	return nil
}
