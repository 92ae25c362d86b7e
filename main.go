package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/margin/cmd"
	"github.com/rubiojr/margin/pkg/config"
	"github.com/rubiojr/margin/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "margin",
		Usage: "Search and annotate your browsing history",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log.SetGlobalDebug(c.Bool("debug"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.MigrateCommand(),
			cmd.ImportCommand(),
			cmd.SearchCommand(),
			cmd.TodayCommand(),
			cmd.ListsCommand(),
			cmd.AnnotateCommand(),
			cmd.BookmarkCommand(),
			cmd.ExportCommand(),
			cmd.RestoreCommand(),
			cmd.ServeCommand(),
			cmd.StatsCommand(),
			cmd.OptimizeCommand(),
			cmd.VersionCommand(),
		},
	}

	err := app.Run(context.Background(), os.Args)
	log.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get default config path: %v\n", err)
		os.Exit(1)
	}
	return path
}
