package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rubiojr/margin/pkg/search"
	"github.com/urfave/cli/v3"
)

// TodayCommand creates the today command
func TodayCommand() *cli.Command {
	return &cli.Command{
		Name:  "today",
		Usage: "Show every page visited, bookmarked or annotated today",
		Flags: searchFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return showToday(ctx, c, time.Now())
		},
	}
}

// showToday lists today's activity newest first, loading every batch
func showToday(ctx context.Context, c *cli.Command, now time.Time) error {
	cfg, store, err := openStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	values := searchValues(c, cfg, "")
	values.Set("from", strconv.FormatInt(startOfDay.UnixMilli(), 10))

	req, err := search.ParseParams(values)
	if err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}
	state, err := loadBatches(ctx, store, req, 0, now)
	if err != nil {
		return fmt.Errorf("loading today's activity: %w", err)
	}

	title := fmt.Sprintf("📅 Today's activity - %s", startOfDay.Format("Monday, January 2, 2006"))
	return printDocs(ctx, c, store, title, state, now)
}
