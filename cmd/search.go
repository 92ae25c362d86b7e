package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/margin/pkg/config"
	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/search"
	"github.com/rubiojr/margin/pkg/storage"
	"github.com/urfave/cli/v3"
)

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Pages per batch (defaults to search.default_limit)",
		},
		&cli.StringSliceFlag{
			Name:  "domain",
			Usage: "Only show pages from this domain. Can be used multiple times",
		},
		&cli.Int64SliceFlag{
			Name:  "list",
			Usage: "Only show pages in this list id. Can be used multiple times",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "Only activity since this date (YYYY-MM-DD or epoch milliseconds)",
		},
		&cli.StringFlag{
			Name:  "until",
			Usage: "Only activity until this date (YYYY-MM-DD or epoch milliseconds)",
		},
		&cli.BoolFlag{Name: "pdf", Usage: "Only PDFs"},
		&cli.BoolFlag{Name: "video", Usage: "Only videos"},
		&cli.BoolFlag{Name: "tweet", Usage: "Only tweets"},
		&cli.BoolFlag{Name: "event", Usage: "Only events"},
		&cli.BoolFlag{
			Name:  "annotated",
			Usage: "Only pages with annotations in the results",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print results as JSON",
		},
		&cli.BoolFlag{
			Name:  "no-pager",
			Usage: "Disable pager and output directly to terminal",
		},
	}
}

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	flags := append(searchFlags(),
		&cli.StringFlag{
			Name:  "query",
			Usage: "Search query (remaining arguments are appended)",
		},
		&cli.BoolFlag{
			Name:  "fuzzy",
			Usage: "Match terms as prefixes (defaults to search.fuzzy_terms)",
		},
		&cli.StringSliceFlag{
			Name:  "match",
			Usage: "Fields to match: text, title, highlights, notes. Can be used multiple times",
		},
		&cli.IntFlag{
			Name:  "pages",
			Usage: "Number of batches to load",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Load every batch",
		},
	)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search pages and annotations, or list recent activity without a query",
		ArgsUsage: "[query]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(append([]string{c.String("query")}, c.Args().Slice()...), " "))
			batches := c.Int("pages")
			if c.Bool("all") {
				batches = 0
			}
			return runSearch(ctx, c, query, batches)
		},
	}
}

// searchValues turns command flags into the parameters ParseParams
// understands, so the CLI and the HTTP API parse searches the same way.
func searchValues(c *cli.Command, cfg *config.Config, query string) url.Values {
	values := url.Values{}
	if query != "" {
		values.Set("q", query)
	}
	limit := c.Int("limit")
	if limit <= 0 {
		limit = cfg.Search.DefaultLimit
	}
	values.Set("limit", strconv.Itoa(limit))
	for _, d := range c.StringSlice("domain") {
		values.Add("domain", d)
	}
	for _, id := range c.Int64Slice("list") {
		values.Add("list", strconv.FormatInt(id, 10))
	}
	for _, name := range []string{"from", "until"} {
		if v := c.String(name); v != "" {
			values.Set(name, v)
		}
	}
	for _, name := range []string{"pdf", "video", "tweet", "event"} {
		if c.Bool(name) {
			values.Set(name, "true")
		}
	}
	if c.Bool("annotated") {
		values.Set("omit_empty", "true")
	}
	if c.IsSet("fuzzy") {
		values.Set("fuzzy", strconv.FormatBool(c.Bool("fuzzy")))
	} else {
		values.Set("fuzzy", strconv.FormatBool(cfg.Search.FuzzyTerms))
	}
	if match := c.StringSlice("match"); len(match) > 0 {
		values.Set("match", strings.Join(match, ","))
	}
	return values
}

// loadBatches runs a search session and loads up to batches batches, or
// every batch when batches is 0.
func loadBatches(ctx context.Context, store *storage.Store, req search.Request, batches int, now time.Time) (search.State, error) {
	session := search.NewSession(search.NewService(store, store, store))
	err := session.Dispatch(ctx, search.QueryChanged{
		Params: req.Params,
		Limit:  req.Cursor.Limit,
		// Blank cursors are exclusive; include activity from this millisecond.
		Now: now.UnixMilli() + 1,
	})
	for loaded := 1; err == nil && !session.State().Exhausted && (batches == 0 || loaded < batches); loaded++ {
		err = session.Dispatch(ctx, search.LoadMore{})
	}
	return session.State(), err
}

func listNames(ctx context.Context, store *storage.Store) map[int64]string {
	names := make(map[int64]string)
	lists, err := store.Lists(ctx)
	if err != nil {
		logger.Warnf("failed to load list names: %v", err)
		return names
	}
	for _, l := range lists {
		names[l.ID] = l.Name
	}
	return names
}

func runSearch(ctx context.Context, c *cli.Command, query string, batches int) error {
	cfg, store, err := openStore(ctx, c.String("config"))
	if err != nil {
		return err
	}
	defer closeStore(store)

	req, err := search.ParseParams(searchValues(c, cfg, query))
	if err != nil {
		return fmt.Errorf("invalid search: %w", err)
	}

	now := time.Now()
	state, err := loadBatches(ctx, store, req, batches, now)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	title := fmt.Sprintf("🔎 Results for %q", query)
	if query == "" {
		title = "🕘 Recent activity"
	}
	return printDocs(ctx, c, store, title, state, now)
}

func printDocs(ctx context.Context, c *cli.Command, store *storage.Store, title string, state search.State, now time.Time) error {
	docs := state.Docs
	if docs == nil {
		docs = []core.SearchResultPage{}
	}
	if c.Bool("json") {
		enc := json.NewEncoder(output(c))
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Docs      []core.SearchResultPage `json:"docs"`
			Exhausted bool                    `json:"results_exhausted"`
			Next      search.Cursor           `json:"next"`
		}{docs, state.Exhausted, state.Cursor})
	}

	rendered := formatDocs(title, docs, state.Exhausted, listNames(ctx, store), now)
	out := output(c)
	if c.Bool("no-pager") || out != io.Writer(os.Stdout) || !isTerminal() {
		fmt.Fprint(out, rendered)
		return nil
	}
	return displayWithPager(rendered)
}
