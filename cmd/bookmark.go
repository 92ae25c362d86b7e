package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/urfave/cli/v3"
)

// BookmarkCommand creates the bookmark command
func BookmarkCommand() *cli.Command {
	return &cli.Command{
		Name:      "bookmark",
		Usage:     "Bookmark a page, or remove its bookmark",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Page title"},
			&cli.BoolFlag{Name: "remove", Usage: "Remove the bookmark instead"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			raw := c.Args().First()
			if raw == "" {
				return fmt.Errorf("url is required")
			}
			page, err := core.NewPage(raw, c.String("title"))
			if err != nil {
				return err
			}

			_, store, err := openStore(ctx, c.String("config"))
			if err != nil {
				return err
			}
			defer closeStore(store)

			if c.Bool("remove") {
				if err := store.RemoveBookmark(ctx, page.URL); err != nil {
					return err
				}
				fmt.Fprintf(output(c), "Removed bookmark for %s\n", page.URL)
				return nil
			}

			if page, err = store.UpsertPage(ctx, page); err != nil {
				return err
			}
			if err := store.SetBookmark(ctx, page.URL, time.Now().UnixMilli()); err != nil {
				return err
			}
			fmt.Fprintf(output(c), "Bookmarked %s\n", page.URL)
			return nil
		},
	}
}
