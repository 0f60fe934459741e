package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/haukened/nimbus/internal/nimbus/common/clock"
	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/config"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/gateways/connectivity"
	"github.com/haukened/nimbus/internal/nimbus/gateways/engine"
	"github.com/haukened/nimbus/internal/nimbus/gateways/notify"
	"github.com/haukened/nimbus/internal/nimbus/gateways/transfer"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist/bloom"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist/lru"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist/watch"
	"github.com/haukened/nimbus/internal/nimbus/repos/offlinecache"
	boltstore "github.com/haukened/nimbus/internal/nimbus/repos/offlinecache/bolt"
	filestore "github.com/haukened/nimbus/internal/nimbus/repos/offlinecache/file"
	"github.com/haukened/nimbus/internal/nimbus/repos/viewers"
	"github.com/haukened/nimbus/internal/nimbus/services/classifier"
	"github.com/haukened/nimbus/internal/nimbus/services/downloads"
	"github.com/haukened/nimbus/internal/nimbus/services/pipeline"
)

// Application holds all the components of one browsing session.
type Application struct {
	config     *config.AppConfig
	logger     log.Logger
	filters    *filterlist.Matcher // nil when filtering is disabled
	cache      *offlinecache.Cache // nil when the cache is disabled or the session is private
	classifier *classifier.Classifier
	downloads  *downloads.Coordinator
	chooser    downloads.DirectoryChooser
	pipeline   *pipeline.Pipeline

	// changed receives a token whenever a download reaches a terminal state.
	changed chan struct{}

	mu       sync.Mutex
	finished []domain.DownloadJob
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	// Create shared clock for consistent time across all components
	clk := clock.RealClock{}

	// Initialize logger (already configured globally)
	logger := log.GetLogger()

	app := &Application{
		config:  cfg,
		logger:  logger,
		chooser: downloads.DirectoryChooser{Dir: cfg.Downloads.Directory},
		changed: make(chan struct{}, 1),
	}

	// Build repository layer
	if err := app.buildRepositories(clk); err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	// Both gateways consult the filter through the pipeline, which is built
	// after them.
	allow := func(req domain.Request) bool { return app.pipeline.AllowRequest(req) }

	// Build service layer
	app.downloads = downloads.New(downloads.Options{
		Transport: transfer.New(transfer.Options{
			UserAgent: cfg.Network.UserAgent,
			Allow:     allow,
			Logger:    logger,
		}),
		Notifier: notify.LogNotifier{Logger: logger},
		Clock:    clk,
		Logger:   logger,
	})
	app.downloads.Subscribe(app.recordDownload)

	var matcher pipeline.Matcher
	if app.filters != nil {
		matcher = app.filters
	}
	var cache pipeline.OfflineCache
	if app.cache != nil {
		cache = app.cache
	}

	pipe, err := pipeline.New(pipeline.Options{
		Session:    pipeline.Session{ID: uuid.Must(uuid.NewV7()).String(), Private: cfg.Private},
		Matcher:    matcher,
		Classifier: app.classifier,
		Cache:      cache,
		Downloads:  app.downloads,
		Engine: engine.New(engine.Options{
			Timeout:   cfg.Network.Timeout,
			UserAgent: cfg.Network.UserAgent,
			Allow:     allow,
			Logger:    logger,
		}),
		Connectivity: connectivity.New(connectivity.Options{Probe: cfg.Network.Probe}),
		Destinations: app.chooser,
		Logger:       logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	app.pipeline = pipe

	log.Info(map[string]any{
		"session":   pipe.Session().ID,
		"private":   cfg.Private,
		"downloads": cfg.Downloads.Directory,
	}, "session_started")
	return app, nil
}

// buildRepositories creates the filter matcher, offline cache and classifier
func (app *Application) buildRepositories(clk clock.Clock) error {
	cfg := app.config

	if cfg.Filter.Enabled {
		app.filters = filterlist.NewMatcher(filterlist.MatcherOptions{
			Logger:   app.logger,
			Clock:    clk,
			Bloom:    bloom.NewFactory(),
			FPRate:   cfg.Filter.FPRate,
			NewCache: lru.Factory(cfg.Filter.CacheSize),
		})
		// unreadable lists are skipped; the rest still load
		if err := app.reloadFilters(); err != nil {
			log.Warn(map[string]any{"error": err}, "filter_sources_partial")
		}
	} else {
		log.Info(map[string]any{"disabled": true}, "request_filtering_disabled")
	}

	if cfg.Cache.Enabled && !cfg.Private {
		cache, err := openCache(cfg.Cache, app.logger)
		switch {
		case errors.Is(err, errUnknownBackend):
			return err
		case err != nil:
			// browsing continues without offline copies
			log.Warn(map[string]any{
				"backend":   cfg.Cache.Backend,
				"directory": cfg.Cache.Directory,
				"error":     err,
			}, "offline_cache_unavailable")
		default:
			app.cache = cache
			log.Info(map[string]any{
				"backend":     cfg.Cache.Backend,
				"directory":   cfg.Cache.Directory,
				"memory_size": cfg.Cache.MemorySize,
			}, "offline_cache_configured")
		}
	}

	vs, err := viewers.Load(cfg.Viewers.File)
	if err != nil {
		app.Close()
		return fmt.Errorf("failed to load viewers: %w", err)
	}
	app.classifier = classifier.New(classifier.Options{
		Viewers:        vs,
		ViewersEnabled: cfg.Viewers.Enabled,
		Logger:         app.logger,
	})
	return nil
}

var errUnknownBackend = errors.New("unknown cache backend")

// openCache opens the persistent tier and layers the memory tier over it.
func openCache(cfg config.CacheConfig, logger log.Logger) (*offlinecache.Cache, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := offlinecache.New(offlinecache.Options{
		Store:      store,
		MemorySize: cfg.MemorySize,
		Logger:     logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create offline cache: %w", err)
	}
	return cache, nil
}

// openStore returns the persistent tier selected by cfg.Backend.
func openStore(cfg config.CacheConfig) (offlinecache.Store, error) {
	switch cfg.Backend {
	case "bolt":
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return nil, err
		}
		return boltstore.New(filepath.Join(cfg.Directory, "offline.db"))
	case "file":
		return filestore.New(cfg.Directory), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownBackend, cfg.Backend)
	}
}

func (app *Application) reloadFilters() error {
	return app.filters.Reload(filterlist.DirectorySources(app.config.Filter.Bundled, app.config.Filter.Directory))
}

// watchFilters reloads the filter lists whenever the user list directory
// changes, until ctx is done. It is a no-op unless filtering and watching
// are both enabled.
func (app *Application) watchFilters(ctx context.Context) error {
	if app.filters == nil || !app.config.Filter.Watch {
		return nil
	}
	w, err := watch.New(watch.Options{
		Dir:    app.config.Filter.Directory,
		Logger: app.logger,
		Reload: app.reloadFilters,
	})
	if err != nil {
		return err
	}
	go w.Run(ctx)
	return nil
}

func (app *Application) recordDownload(job domain.DownloadJob) {
	if !job.State.Terminal() {
		return
	}
	app.mu.Lock()
	app.finished = append(app.finished, job)
	app.mu.Unlock()
	select {
	case app.changed <- struct{}{}:
	default:
	}
}

// waitDownloads blocks until no download is active. When ctx ends first,
// every active download is aborted.
func (app *Application) waitDownloads(ctx context.Context) error {
	for len(app.downloads.Active()) > 0 {
		select {
		case <-ctx.Done():
			app.downloads.AbortAll()
			return ctx.Err()
		case <-app.changed:
		}
	}
	return nil
}

// takeFinished returns and forgets the downloads that ended so far.
func (app *Application) takeFinished() []domain.DownloadJob {
	app.mu.Lock()
	defer app.mu.Unlock()
	out := app.finished
	app.finished = nil
	return out
}

// Close aborts in-flight downloads and releases the offline cache.
func (app *Application) Close() error {
	if app.downloads != nil {
		app.downloads.AbortAll()
	}
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			return fmt.Errorf("failed to close offline cache: %w", err)
		}
	}
	return nil
}
