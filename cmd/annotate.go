package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/margin/pkg/core"
	"github.com/urfave/cli/v3"
)

// AnnotateCommand creates the annotate command
func AnnotateCommand() *cli.Command {
	return &cli.Command{
		Name:  "annotate",
		Usage: "Add a highlight or note to a page",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Page URL (required)"},
			&cli.StringFlag{Name: "highlight", Usage: "Highlighted text"},
			&cli.StringFlag{Name: "note", Usage: "Note text"},
			&cli.StringFlag{
				Name:  "privacy",
				Usage: "private, protected, shared or shared-protected",
				Value: core.PrivacyPrivate.String(),
			},
			&cli.Int64SliceFlag{Name: "list", Usage: "Add the annotation to this list id. Can be used multiple times"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return annotate(ctx, c, time.Now())
		},
		Commands: []*cli.Command{
			{
				Name:      "rm",
				Usage:     "Delete an annotation",
				ArgsUsage: "<annotation id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("annotation id is required")
					}
					_, store, err := openStore(ctx, c.String("config"))
					if err != nil {
						return err
					}
					defer closeStore(store)
					if err := store.DeleteAnnotation(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(output(c), "Deleted annotation %s\n", id)
					return nil
				},
			},
		},
	}
}

func annotate(ctx context.Context, c *cli.Command, now time.Time) error {
	if c.String("url") == "" {
		return fmt.Errorf("--url is required")
	}
	highlight, note := c.String("highlight"), c.String("note")
	if highlight == "" && note == "" {
		return fmt.Errorf("a --highlight or a --note is required")
	}
	privacy, err := core.ParsePrivacyLevel(c.String("privacy"))
	if err != nil {
		return err
	}
	page, err := core.NewPage(c.String("url"), "")
	if err != nil {
		return err
	}

	_, store, err := openStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)

	if page, err = store.UpsertPage(ctx, page); err != nil {
		return err
	}
	a, err := store.PutAnnotation(ctx, core.Annotation{
		URL:          page.URL + "#" + uuid.NewString(),
		PageURL:      page.URL,
		Body:         highlight,
		Comment:      note,
		CreatedWhen:  now.UnixMilli(),
		PrivacyLevel: privacy,
	})
	if err != nil {
		return err
	}
	for _, listID := range c.Int64Slice("list") {
		if err := store.AddAnnotationToList(ctx, listID, a.URL); err != nil {
			return fmt.Errorf("adding annotation to list %d: %w", listID, err)
		}
	}
	fmt.Fprintf(output(c), "Created annotation %s\n", a.URL)
	return nil
}
