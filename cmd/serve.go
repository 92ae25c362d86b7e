package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/margin/pkg/api"
	"github.com/rubiojr/margin/pkg/config"
	"github.com/rubiojr/margin/pkg/warehouse"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and run scheduled imports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides listen_addr)",
			},
			&cli.BoolFlag{
				Name:  "no-import",
				Usage: "Serve the API without running importers",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"), !c.Bool("no-import"))
		},
	}
}

// serve runs the API server and the import scheduler until interrupted.
func serve(ctx context.Context, configPath, listen string, imports bool) error {
	cfg, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if listen == "" {
		listen = cfg.ListenAddr
	}

	apiServer := api.NewServer(store, api.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		FuzzyTerms:   cfg.Search.FuzzyTerms,
	})
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           api.LoggingMiddleware(api.CorsMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wh := warehouse.NewWarehouse(warehouse.Config{OptimizeInterval: cfg.OptimizeInterval.Duration}, store)
	if imports {
		if err := addImporters(wh, cfg); err != nil {
			return err
		}
	}

	whCtx, whCancel := context.WithCancel(ctx)
	defer whCancel()
	if err := wh.Start(whCtx); err != nil {
		return fmt.Errorf("starting warehouse: %w", err)
	}
	defer wh.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on http://%s", listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var configEvents <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Debugf("watching config file for changes: %s", configPath)
		}
		configEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	reload := func(reason string) {
		if !imports {
			return
		}
		logger.Infof("%s, reloading importers", reason)
		newCfg, err := reloadImporters(configPath, wh, cfg)
		if err != nil {
			logger.Errorf("failed to reload configuration: %v", err)
			return
		}
		cfg = newCfg
	}

	for {
		select {
		case err, ok := <-serverErr:
			if ok {
				return fmt.Errorf("serving http: %w", err)
			}
			return nil
		case <-ctx.Done():
			return shutdown(httpServer)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reload("received SIGHUP")
				continue
			}
			logger.Infof("shutting down")
			return shutdown(httpServer)
		case event, ok := <-configEvents:
			if !ok {
				configEvents = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// Editors replace the file on save; wait for the new one and watch it again.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file was removed, keeping current importers")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload(fmt.Sprintf("config file changed (%s)", event.Op))
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func addImporters(wh *warehouse.Warehouse, cfg *config.Config) error {
	importers, err := importersFromConfig(cfg)
	if err != nil {
		return err
	}
	for _, imp := range importers {
		interval := cfg.ImporterInterval(imp.Name())
		logger.Infof("importer %s runs every %v", imp.Name(), interval)
		if err := wh.AddImporter(imp, interval); err != nil {
			return fmt.Errorf("adding importer %s: %w", imp.Name(), err)
		}
	}
	return nil
}

// reloadImporters swaps the warehouse importers for the ones configured in
// configPath. The running set is left untouched when the new file is invalid.
func reloadImporters(configPath string, wh *warehouse.Warehouse, current *config.Config) (*config.Config, error) {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading new config: %w", err)
	}
	if _, err := importersFromConfig(newCfg); err != nil {
		return nil, err
	}

	for _, name := range current.ImporterNames() {
		if err := wh.RemoveImporter(name); err != nil {
			logger.Warnf("failed to remove importer %s: %v", name, err)
		}
	}
	if err := addImporters(wh, newCfg); err != nil {
		return nil, err
	}
	logger.Infof("configuration reloaded: %d importers", len(newCfg.ImporterNames()))
	return newCfg, nil
}
