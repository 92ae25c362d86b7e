package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/margin/pkg/backup"
	"github.com/urfave/cli/v3"
)

// ExportCommand creates the export command
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a compressed backup of the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Backup file (- for stdout)",
				Value:   "margin-backup.jsonl.zst",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, store, err := openStore(ctx, c.String("config"))
			if err != nil {
				return err
			}
			defer closeStore(store)

			path := c.String("output")
			var w io.Writer = output(c)
			var f *os.File
			if path != "-" {
				if f, err = os.Create(path); err != nil {
					return fmt.Errorf("creating backup file: %w", err)
				}
				w = f
			}

			summary, err := backup.Export(ctx, store, w)
			if f != nil {
				if cerr := f.Close(); err == nil && cerr != nil {
					err = fmt.Errorf("closing backup file: %w", cerr)
				}
			}
			if err != nil {
				return fmt.Errorf("exporting: %w", err)
			}
			if path != "-" {
				fmt.Fprintf(output(c), "Exported %d pages, %d visits, %d bookmarks, %d lists, %d annotations to %s\n",
					summary.Pages, summary.Visits, summary.Bookmarks, summary.Lists, summary.Annotations, path)
			}
			return nil
		},
	}
}

// RestoreCommand creates the restore command
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore a backup written by export",
		ArgsUsage: "<backup file | ->",
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("backup file is required")
			}

			var r io.Reader = os.Stdin
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening backup file: %w", err)
				}
				defer f.Close()
				r = f
			}

			_, store, err := openStore(ctx, c.String("config"))
			if err != nil {
				return err
			}
			defer closeStore(store)

			summary, err := backup.Restore(ctx, store, r)
			if err != nil {
				return fmt.Errorf("restoring: %w", err)
			}
			fmt.Fprintf(output(c), "Restored %d pages, %d visits, %d bookmarks, %d lists, %d annotations, %d list entries\n",
				summary.Pages, summary.Visits, summary.Bookmarks, summary.Lists, summary.Annotations, summary.ListEntries)
			return nil
		},
	}
}
