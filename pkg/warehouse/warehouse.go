// Package warehouse schedules browser history imports and periodic
// database maintenance for a running margin server.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rubiojr/margin/pkg/importer"
	"github.com/rubiojr/margin/pkg/log"
	"golang.org/x/sync/errgroup"
)

// Store is the storage the warehouse imports into. *storage.Store
// implements it.
type Store interface {
	importer.Sink
	LastImport(ctx context.Context, name string) (int64, error)
	SetLastImport(ctx context.Context, name string, lastActivity int64) error
	Optimize(ctx context.Context) error
}

type Config struct {
	OptimizeInterval time.Duration
}

type Warehouse struct {
	config    Config
	store     Store
	importers map[string]importer.Importer
	intervals map[string]time.Duration
	schedules map[string]*schedule
	ctx       context.Context
	ctxCancel context.CancelFunc
	mu        sync.RWMutex
	wg        sync.WaitGroup
	running   bool
	logger    *log.Logger

	// runMu serializes runs of the same importer so scheduled and manual
	// imports never read the same since value twice.
	runMu sync.Map
}

func NewWarehouse(config Config, store Store) *Warehouse {
	return &Warehouse{
		config:    config,
		store:     store,
		importers: make(map[string]importer.Importer),
		intervals: make(map[string]time.Duration),
		schedules: make(map[string]*schedule),
		logger:    log.ForService("warehouse"),
	}
}

// AddImporter registers imp to run every interval. An interval of 0 keeps
// the importer out of the schedule; it still runs on FetchOnce.
// Adding an importer whose name is already registered replaces it.
func (w *Warehouse) AddImporter(imp importer.Importer, interval time.Duration) error {
	if interval < 0 {
		return fmt.Errorf("importer %s: negative interval %v", imp.Name(), interval)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	name := imp.Name()
	w.stopTickerLocked(name)
	w.importers[name] = imp
	w.intervals[name] = interval

	if w.running && interval > 0 {
		w.startTickerLocked(name, interval)
		w.logger.Infof("Started scheduler for new importer %s with interval %v", name, interval)
	} else if interval == 0 {
		w.logger.Infof("Importer %s configured with interval 0 (manual imports only)", name)
	}
	return nil
}

// RemoveImporter stops and forgets importer name.
func (w *Warehouse) RemoveImporter(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.importers[name]; !ok {
		return fmt.Errorf("importer %s not found", name)
	}
	w.stopTickerLocked(name)
	delete(w.importers, name)
	delete(w.intervals, name)
	w.logger.Infof("Removed importer: %s", name)
	return nil
}

// ImporterNames returns the registered importers, sorted.
func (w *Warehouse) ImporterNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.importers))
	for name := range w.importers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type schedule struct {
	ticker *time.Ticker
	done   chan struct{}
}

func (w *Warehouse) startTickerLocked(name string, interval time.Duration) {
	s := &schedule{ticker: time.NewTicker(interval), done: make(chan struct{})}
	w.schedules[name] = s
	w.wg.Add(1)
	go w.runImporter(w.ctx, name, s)
}

func (w *Warehouse) stopTickerLocked(name string) {
	if s, ok := w.schedules[name]; ok {
		s.ticker.Stop()
		close(s.done)
		delete(w.schedules, name)
		w.logger.Debugf("Stopped ticker for importer: %s", name)
	}
}

// Start schedules every importer with a non-zero interval, the optimize
// job, and runs an initial import in the background.
func (w *Warehouse) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("warehouse is already running")
	}
	if len(w.importers) == 0 && w.config.OptimizeInterval <= 0 {
		return fmt.Errorf("nothing to schedule: no importers configured and optimization disabled")
	}

	w.ctx, w.ctxCancel = context.WithCancel(ctx)
	w.running = true

	w.logger.Infof("Starting warehouse with %d importers:", len(w.importers))
	for name, interval := range w.intervals {
		if interval == 0 {
			w.logger.Infof("  - %s: manual", name)
			continue
		}
		w.logger.Infof("  - %s: %v", name, interval)
		w.startTickerLocked(name, interval)
	}

	if w.config.OptimizeInterval > 0 {
		w.wg.Add(1)
		go w.runOptimization(w.ctx, time.NewTicker(w.config.OptimizeInterval))
	}

	if len(w.importers) > 0 {
		runCtx := w.ctx
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if _, err := w.FetchOnce(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warnf("Initial import failed: %v", err)
			}
		}()
	}

	w.logger.Infof("Warehouse started, optimize interval: %v", w.config.OptimizeInterval)
	return nil
}

func (w *Warehouse) runImporter(ctx context.Context, name string, s *schedule) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debugf("Importer %s context cancelled", name)
			return
		case <-s.done:
			return
		case <-s.ticker.C:
			w.logger.Debugf("Running scheduled import: %s", name)
			if _, err := w.ImportByName(ctx, name); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Errorf("Scheduled import %s failed: %v", name, err)
			}
		}
	}
}

func (w *Warehouse) runOptimization(ctx context.Context, ticker *time.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logger.Infof("Running database optimization")
			if err := w.store.Optimize(ctx); err != nil {
				w.logger.Errorf("Database optimization failed: %v", err)
			}
		}
	}
}

func (w *Warehouse) lockFor(name string) *sync.Mutex {
	mu, _ := w.runMu.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ImportByName runs one import of importer name, continuing from the
// newest activity recorded by its previous run.
func (w *Warehouse) ImportByName(ctx context.Context, name string) (importer.Report, error) {
	w.mu.RLock()
	imp, ok := w.importers[name]
	w.mu.RUnlock()
	if !ok {
		return importer.Report{}, fmt.Errorf("importer %s not found", name)
	}

	mu := w.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	since, err := w.store.LastImport(ctx, name)
	if err != nil {
		return importer.Report{}, fmt.Errorf("reading import state of %s: %w", name, err)
	}

	start := time.Now()
	report, err := imp.Import(ctx, w.store, since)
	if err != nil {
		return report, fmt.Errorf("importing %s: %w", name, err)
	}
	if report.Newest > since {
		if err := w.store.SetLastImport(ctx, name, report.Newest); err != nil {
			return report, fmt.Errorf("saving import state of %s: %w", name, err)
		}
	}
	w.logger.Infof("Imported %s: %d pages, %d visits, %d bookmarks, %d skipped in %v",
		name, report.Pages, report.Visits, report.Bookmarks, report.Skipped, time.Since(start).Round(time.Millisecond))
	return report, nil
}

// FetchOnce imports from every registered importer concurrently, including
// those with interval 0. All importers run even when one fails; the first
// error is returned.
func (w *Warehouse) FetchOnce(ctx context.Context, options ...FetchOption) (map[string]importer.Report, error) {
	opts := &fetchOptions{}
	for _, opt := range options {
		opt(opts)
	}

	names := w.ImporterNames()
	if len(opts.only) > 0 {
		names = names[:0]
		for _, name := range opts.only {
			w.mu.RLock()
			_, ok := w.importers[name]
			w.mu.RUnlock()
			if !ok {
				return nil, fmt.Errorf("importer %s not found", name)
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no importers configured")
	}

	var (
		mu      sync.Mutex
		reports = make(map[string]importer.Report, len(names))
		g       errgroup.Group
	)
	for _, name := range names {
		g.Go(func() error {
			report, err := w.ImportByName(ctx, name)
			if err != nil {
				w.logger.Errorf("%v", err)
				return err
			}
			mu.Lock()
			reports[name] = report
			mu.Unlock()
			if opts.onReport != nil {
				opts.onReport(name, report)
			}
			return nil
		})
	}
	err := g.Wait()

	w.logger.Infof("One-time import completed from %d importers", len(names))
	return reports, err
}

// FetchOption configures FetchOnce.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	onReport func(string, importer.Report)
	only     []string
}

// WithReports calls fn after each importer finishes successfully. fn may
// be called concurrently.
func WithReports(fn func(name string, report importer.Report)) FetchOption {
	return func(opts *fetchOptions) {
		opts.onReport = fn
	}
}

// Only restricts FetchOnce to the named importers.
func Only(names ...string) FetchOption {
	return func(opts *fetchOptions) {
		opts.only = names
	}
}

func (w *Warehouse) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}

	w.logger.Infof("Stopping warehouse...")
	w.ctxCancel()
	for name := range w.schedules {
		w.stopTickerLocked(name)
	}
	w.running = false
	w.mu.Unlock()

	// Running imports take the read lock, so wait without holding it.
	w.wg.Wait()
	w.logger.Infof("Warehouse stopped")
}

func (w *Warehouse) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
