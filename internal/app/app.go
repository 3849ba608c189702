// Package app builds and owns the long-lived services of one CLI invocation:
// the store, transport, optional archive and notifier, the progress hub and
// the optional metrics listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-harvester/internal/clock/system"
	"github.com/JakeFAU/quote-harvester/internal/config"
	"github.com/JakeFAU/quote-harvester/internal/discovery"
	"github.com/JakeFAU/quote-harvester/internal/extract"
	collyfetcher "github.com/JakeFAU/quote-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/quote-harvester/internal/harvest"
	"github.com/JakeFAU/quote-harvester/internal/id/uuid"
	"github.com/JakeFAU/quote-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/quote-harvester/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/quote-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/quote-harvester/internal/quote"
	"github.com/JakeFAU/quote-harvester/internal/runner"
	"github.com/JakeFAU/quote-harvester/internal/server"
	gcsstorage "github.com/JakeFAU/quote-harvester/internal/storage/gcs"
	localstorage "github.com/JakeFAU/quote-harvester/internal/storage/local"
	pgstore "github.com/JakeFAU/quote-harvester/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/quote-harvester/internal/storage/sqlite"
	"github.com/JakeFAU/quote-harvester/internal/watermark"
)

// Options carries what the CLI resolved before building the App.
type Options struct {
	Config    config.Config
	StorePath string
	Logger    *zap.Logger
	// ProgressOut receives the terminal progress line; os.Stderr when nil.
	ProgressOut io.Writer
	// Transport overrides the colly fetcher (tests).
	Transport quote.Transport
}

// App holds all the services for one run.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     quote.Store
	archive   quote.BlobStore
	publisher *gcppublisher.Publisher
	hub       *progress.Hub
	runner    *runner.Runner

	closers []func() error

	serverCancel context.CancelFunc
	serverWG     sync.WaitGroup
	closeOnce    sync.Once
}

// New initializes every service. It fails fast and releases anything
// already opened when a service cannot be built.
func New(ctx context.Context, opts Options) (_ *App, err error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.store, err = OpenStore(ctx, opts.StorePath, cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	transport := opts.Transport
	if transport == nil {
		transport, err = collyfetcher.New(collyfetcher.Config{
			BaseURL:   cfg.Source.BaseURL,
			QuotePath: cfg.Source.QuotePath,
			UserAgent: cfg.Source.UserAgent,
			Timeout:   cfg.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("init fetcher: %w", err)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	extractor := extract.New(extract.Config{
		BodySelector:  cfg.Extract.Body,
		DateSelector:  cfg.Extract.Date,
		LikesSelector: cfg.Extract.Likes,
		DateLayout:    cfg.Extract.DateLayout,
		Location:      loc,
	})

	if err := a.initArchive(ctx); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	if err := a.initProgress(reg, opts.ProgressOut); err != nil {
		return nil, err
	}
	if err := a.initMetricsServer(reg); err != nil {
		return nil, err
	}

	clock := system.New()
	coordinator := harvest.New(
		transport,
		extractor,
		a.store,
		a.archive,
		a.hub,
		clock,
		uuid.New(),
		harvest.Config{ArchivePrefix: cfg.Archive.Prefix},
		logger.Named("harvest"),
	)
	var pub quote.Publisher
	if a.publisher != nil {
		pub = a.publisher
	}
	a.runner = runner.New(
		discovery.New(transport, cfg.Extract.Permalink, logger.Named("discovery")),
		coordinator,
		watermark.New(a.store, logger.Named("watermark")),
		pub,
		clock,
		runner.Config{Concurrency: cfg.Harvest.Concurrency},
		logger.Named("runner"),
	)
	logger.Info("application services initialized",
		zap.String("source", cfg.Source.BaseURL),
		zap.String("archive", cfg.Archive.Provider),
		zap.Bool("notify", a.publisher != nil),
	)
	return a, nil
}

// IsPostgresDSN reports whether a store path selects the Postgres store.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

// OpenStore opens the Postgres store for a DSN and the SQLite store otherwise.
func OpenStore(ctx context.Context, path string, cfg config.StoreConfig, logger *zap.Logger) (quote.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if IsPostgresDSN(path) {
		store, err := pgstore.NewQuoteStore(ctx, pgstore.QuoteStoreConfig{
			DSN:      path,
			Table:    cfg.Table,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info("postgres store opened", zap.String("table", cfg.Table))
		return store, nil
	}
	store, err := sqlitestore.Open(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

func (a *App) initArchive(ctx context.Context) error {
	switch a.cfg.Archive.Provider {
	case config.ArchiveLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.archive = store
		a.logger.Info("archiving raw pages locally", zap.String("dir", a.cfg.Archive.BaseDir))
	case config.ArchiveGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.archive = store
		a.closers = append(a.closers, store.Close)
		a.logger.Info("archiving raw pages to gcs", zap.String("bucket", a.cfg.Archive.GCSBucket))
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if !a.cfg.NotifyEnabled() {
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.Notify.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.publisher = gcppublisher.New(client.Topic(a.cfg.Notify.TopicID), map[string]string{"event": "run_summary"})
	a.closers = append(a.closers, func() error {
		a.publisher.Stop()
		return nil
	})
	return nil
}

func (a *App) initProgress(reg *prometheus.Registry, out io.Writer) error {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	sinks := []progress.Sink{progresssinks.NewLogSink(a.logger.Named("progress")), promSink}
	if a.cfg.Progress.Terminal {
		if out == nil {
			out = os.Stderr
		}
		sinks = append(sinks, progresssinks.NewTerminalSink(out))
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress")}, sinks...)
	return nil
}

func (a *App) initMetricsServer(reg *prometheus.Registry) error {
	if a.cfg.Metrics.ListenAddr == "" {
		return nil
	}
	srv, err := server.New(reg, a.logger.Named("metrics"))
	if err != nil {
		return fmt.Errorf("init metrics server: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.serverCancel = cancel
	a.serverWG.Add(1)
	go func() {
		defer a.serverWG.Done()
		if err := srv.ListenAndServe(ctx, a.cfg.Metrics.ListenAddr); err != nil {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

// Backfill runs the full harvest.
func (a *App) Backfill(ctx context.Context) (quote.Summary, error) {
	return a.runner.Backfill(ctx)
}

// Update harvests identifiers published since the last run.
func (a *App) Update(ctx context.Context) (quote.Summary, error) {
	return a.runner.Update(ctx)
}

// Close drains progress, stops the metrics listener and releases every
// client in reverse order of construction. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.hub != nil {
			if err := a.hub.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close progress hub: %w", err))
			}
		}
		if a.serverCancel != nil {
			a.serverCancel()
			a.serverWG.Wait()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.logger.Warn("error closing service", zap.Error(err))
				errs = append(errs, err)
			}
		}
		_ = a.logger.Sync()
	})
	return errors.Join(errs...)
}
