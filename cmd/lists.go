package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/storage"
	"github.com/urfave/cli/v3"
)

// ListsCommand creates the lists command
func ListsCommand() *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Manage lists of pages and annotations",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showLists(ctx, c)
		},
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "Show lists in sidebar order",
				Action: func(ctx context.Context, c *cli.Command) error {
					return showLists(ctx, c)
				},
			},
			{
				Name:      "create",
				Usage:     "Create a list at the end of the sidebar",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					name := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
					if name == "" {
						return fmt.Errorf("list name is required")
					}
					_, store, err := openStore(ctx, c.String("config"))
					if err != nil {
						return err
					}
					defer closeStore(store)

					list, err := store.CreateList(ctx, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(output(c), "Created list %d: %s\n", list.ID, list.Name)
					return nil
				},
			},
			{
				Name:  "move",
				Usage: "Move a list to a new sidebar position",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Usage: "List id", Required: true},
					&cli.IntFlag{Name: "index", Usage: "New position, starting at 0", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					_, store, err := openStore(ctx, c.String("config"))
					if err != nil {
						return err
					}
					defer closeStore(store)

					if err := store.MoveList(ctx, c.Int64("id"), c.Int("index")); err != nil {
						return err
					}
					return printLists(ctx, c, store)
				},
			},
			{
				Name:  "add",
				Usage: "Add a page or an annotation to a list",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Usage: "List id", Required: true},
					&cli.StringFlag{Name: "url", Usage: "Page URL"},
					&cli.StringFlag{Name: "annotation", Usage: "Annotation id"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return addToList(ctx, c, c.Int64("id"), c.String("url"), c.String("annotation"))
				},
			},
		},
	}
}

func showLists(ctx context.Context, c *cli.Command) error {
	_, store, err := openStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)
	return printLists(ctx, c, store)
}

func printLists(ctx context.Context, c *cli.Command, store *storage.Store) error {
	lists, err := store.Lists(ctx)
	if err != nil {
		return err
	}
	out := output(c)
	if len(lists) == 0 {
		fmt.Fprintln(out, "No lists yet. Create one with: margin lists create <name>")
		return nil
	}
	for i, l := range lists {
		fmt.Fprintf(out, "%2d. %s (id %d)\n", i, l.Name, l.ID)
	}
	return nil
}

func addToList(ctx context.Context, c *cli.Command, listID int64, pageURL, annotationID string) error {
	if (pageURL == "") == (annotationID == "") {
		return fmt.Errorf("exactly one of --url and --annotation is required")
	}
	_, store, err := openStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)

	if annotationID != "" {
		if err := store.AddAnnotationToList(ctx, listID, annotationID); err != nil {
			return err
		}
		fmt.Fprintf(output(c), "Added annotation %s to list %d\n", annotationID, listID)
		return nil
	}

	page, err := core.NewPage(pageURL, "")
	if err != nil {
		return err
	}
	// Listing a page that was never visited stores it first.
	if page, err = store.UpsertPage(ctx, page); err != nil {
		return err
	}
	if err := store.AddPageToList(ctx, listID, page.URL); err != nil {
		return err
	}
	fmt.Fprintf(output(c), "Added %s to list %d\n", page.URL, listID)
	return nil
}
