// Package app initializes and holds the long-lived services shared by the
// CLI commands: blob storage, the optional fetch log and the event publisher.
package app

import (
	"context"
	"fmt"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/config"
	"github.com/JakeFAU/realtime-search/internal/crawler"
	"github.com/JakeFAU/realtime-search/internal/logging"
	"github.com/JakeFAU/realtime-search/internal/publisher"
	memorypublisher "github.com/JakeFAU/realtime-search/internal/publisher/memory"
	eventpubsub "github.com/JakeFAU/realtime-search/internal/publisher/pubsub"
	"github.com/JakeFAU/realtime-search/internal/storage"
	"github.com/JakeFAU/realtime-search/internal/storage/gcs"
	"github.com/JakeFAU/realtime-search/internal/storage/local"
	"github.com/JakeFAU/realtime-search/internal/storage/memory"
	"github.com/JakeFAU/realtime-search/internal/storage/postgres"
)

// App holds the shared services for one CLI invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     storage.BlobStore
	fetchLog  *postgres.FetchLog
	publisher publisher.Publisher
	closers   []func() error
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the blob store holding the corpus and index artifacts.
func (a *App) Store() storage.BlobStore {
	return a.store
}

// FetchLog returns the fetch log, or nil when none is configured.
func (a *App) FetchLog() crawler.FetchLog {
	if a.fetchLog == nil {
		return nil
	}
	return a.fetchLog
}

// RunLog returns the crawl run ledger, or nil when none is configured.
func (a *App) RunLog() crawler.RunLog {
	if a.fetchLog == nil {
		return nil
	}
	return a.fetchLog
}

// Publisher returns the event publisher, or nil when events are disabled.
func (a *App) Publisher() publisher.Publisher {
	return a.publisher
}

// New creates the services selected by cfg. It fails fast if any configured
// service cannot be initialized, releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logging.OrNop(logger)}
	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Debug("Application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("fetch_log", a.fetchLog != nil),
		zap.String("events", cfg.Events.Backend))
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.cfg
	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.store = store

	if cfg.FetchLog.Enabled() {
		a.logger.Info("Connecting fetch log", zap.String("table", cfg.FetchLog.Table))
		fetchLog, ferr := postgres.NewFetchLog(ctx, postgres.FetchLogConfig{
			DSN:             cfg.FetchLog.DSN,
			Table:           cfg.FetchLog.Table,
			RunTable:        cfg.FetchLog.RunTable,
			MaxConns:        cfg.FetchLog.MaxConns,
			MinConns:        cfg.FetchLog.MinConns,
			MaxConnLifetime: cfg.FetchLog.MaxConnLifetime,
		})
		if ferr != nil {
			return fmt.Errorf("initialize fetch log: %w", ferr)
		}
		a.fetchLog = fetchLog
		a.closers = append(a.closers, func() error { fetchLog.Close(); return nil })
	}

	switch cfg.Events.Backend {
	case config.EventsMemory:
		a.publisher = memorypublisher.New()
	case config.EventsPubSub:
		a.logger.Info("Connecting to Pub/Sub", zap.String("topic", cfg.Events.Topic))
		pub, client, perr := eventpubsub.Connect(ctx, cfg.Events.ProjectID, cfg.Events.Topic)
		if perr != nil {
			return fmt.Errorf("initialize events: %w", perr)
		}
		a.publisher = pub
		a.closers = append(a.closers, client.Close, func() error { pub.Close(); return nil })
	case config.EventsNone, "":
	default:
		return fmt.Errorf("unknown events backend: %s", cfg.Events.Backend)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendLocal:
		return local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
	case config.BackendMemory:
		a.logger.Warn("Using in-memory storage; artifacts are discarded at exit")
		return memory.NewBlobStore(), nil
	case config.BackendGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.Bucket})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
}

// Close releases every opened service in reverse order and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
