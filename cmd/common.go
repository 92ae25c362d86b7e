package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/margin/pkg/config"
	"github.com/rubiojr/margin/pkg/importer"
	"github.com/rubiojr/margin/pkg/log"
	"github.com/rubiojr/margin/pkg/storage"
	"github.com/urfave/cli/v3"
)

var logger = log.ForService("cmd")

// openStore loads the configuration and opens the database it points to,
// applying pending migrations.
func openStore(ctx context.Context, configPath string) (*config.Config, *storage.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := storage.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		logger.Warnf("failed to close database: %v", err)
	}
}

// output is where commands print. Tests replace the root writer.
func output(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// importersFromConfig builds the importers configured in cfg, sorted by name.
func importersFromConfig(cfg *config.Config) ([]importer.Importer, error) {
	var importers []importer.Importer
	for _, name := range cfg.ImporterNames() {
		imp, err := importer.New(name, cfg.Importers[name])
		if err != nil {
			return nil, err
		}
		importers = append(importers, imp)
	}
	return importers, nil
}
