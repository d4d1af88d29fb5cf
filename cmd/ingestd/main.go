// Package main runs the company-website ingestion service. One binary hosts
// three roles selected by --mode: the submission API, the tier-1 scrape
// worker pool, and the tier-2 fallback crawler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/api"
	"github.com/korrarahuldev/company-crawler/internal/browser"
	"github.com/korrarahuldev/company-crawler/internal/clock/system"
	"github.com/korrarahuldev/company-crawler/internal/config"
	"github.com/korrarahuldev/company-crawler/internal/crawler"
	"github.com/korrarahuldev/company-crawler/internal/fetcher"
	"github.com/korrarahuldev/company-crawler/internal/id/uuid"
	"github.com/korrarahuldev/company-crawler/internal/jobstore/memory"
	"github.com/korrarahuldev/company-crawler/internal/jobstore/postgres"
	"github.com/korrarahuldev/company-crawler/internal/logging"
	"github.com/korrarahuldev/company-crawler/internal/metrics"
	pubmemory "github.com/korrarahuldev/company-crawler/internal/publisher/memory"
	"github.com/korrarahuldev/company-crawler/internal/publisher/pubsub"
	queuememory "github.com/korrarahuldev/company-crawler/internal/queue/memory"
	"github.com/korrarahuldev/company-crawler/internal/queue/natsqueue"
	"github.com/korrarahuldev/company-crawler/internal/scrape"
	"github.com/korrarahuldev/company-crawler/internal/storage"
	"github.com/korrarahuldev/company-crawler/internal/storage/gcs"
	"github.com/korrarahuldev/company-crawler/internal/storage/local"
	"github.com/korrarahuldev/company-crawler/internal/worker"
)

func main() {
	mode := flag.String("mode", "api", "Component to run: api, tier1, or tier2")
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *mode, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.String("mode", *mode), zap.Error(err))
	}
}

func run(ctx context.Context, mode string, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()

	transport, err := newTransport(cfg, clock, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := transport.Close(); cerr != nil {
			logger.Warn("close transport failed", zap.Error(cerr))
		}
	}()

	jobs, closeJobs, err := newJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJobs()

	switch mode {
	case "api":
		return runAPI(ctx, cfg, jobs, transport, clock, logger.Named("api"))
	case "tier1":
		return runTier1(ctx, cfg, jobs, transport, clock, logger.Named("tier1"))
	case "tier2":
		return runTier2(ctx, cfg, jobs, transport, clock, logger.Named("tier2"))
	default:
		return fmt.Errorf("unknown mode %q (want api, tier1, or tier2)", mode)
	}
}

func runAPI(
	ctx context.Context,
	cfg config.Config,
	jobs crawler.JobStore,
	transport crawler.Transport,
	clock crawler.Clock,
	logger *zap.Logger,
) error {
	server := api.NewServer(api.Config{
		PrimaryQueue: cfg.Queue.PrimaryQueue,
	}, jobs, transport, uuid.New(), clock, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func runTier1(
	ctx context.Context,
	cfg config.Config,
	jobs crawler.JobStore,
	transport crawler.Transport,
	clock crawler.Clock,
	logger *zap.Logger,
) error {
	scraper, err := scrape.NewClient(cfg.Scrape, logger.Named("scrape"))
	if err != nil {
		return err
	}
	artifacts, closeStorage, err := newArtifactStore(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer closeStorage()
	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			logger.Warn("close publisher failed", zap.Error(cerr))
		}
	}()

	w := worker.NewTier1(worker.Tier1Config{
		PrimaryQueue:  cfg.Queue.PrimaryQueue,
		FallbackQueue: cfg.Queue.FallbackQueue,
		Concurrency:   cfg.Tier1.Concurrency,
	}, transport, jobs, scraper, artifacts, publisher, logger)
	return w.Run(ctx)
}

func runTier2(
	ctx context.Context,
	cfg config.Config,
	jobs crawler.JobStore,
	transport crawler.Transport,
	clock crawler.Clock,
	logger *zap.Logger,
) error {
	backend, err := browser.Select(browser.Config{
		Backend:           cfg.Browser.Backend,
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		SettleWait:        cfg.Browser.SettleWait,
		UserAgent:         cfg.Crawler.UserAgent,
	}, logger.Named("browser"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Warn("close browser backend failed", zap.Error(cerr))
		}
	}()

	artifacts, closeStorage, err := newArtifactStore(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer closeStorage()
	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			logger.Warn("close publisher failed", zap.Error(cerr))
		}
	}()

	excluded, err := compilePatterns(cfg.Crawler.ExcludedPatterns)
	if err != nil {
		return err
	}
	docs := fetcher.New(fetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Browser.NavigationTimeout,
	})
	traverser := crawler.NewTraverser(backend, docs, artifacts, crawler.TraversalConfig{
		MaxPages:         cfg.Crawler.MaxPages,
		RespectRobots:    cfg.Crawler.RespectRobots,
		UserAgent:        cfg.Crawler.UserAgent,
		ExcludedPatterns: excluded,
		CrawlQPS:         cfg.Crawler.QPS,
	}, logger.Named("traversal"))

	w := worker.NewTier2(worker.Tier2Config{
		FallbackQueue: cfg.Queue.FallbackQueue,
	}, transport, jobs, traverser, publisher, logger)
	return w.Run(ctx)
}

func newTransport(cfg config.Config, clock crawler.Clock, logger *zap.Logger) (crawler.Transport, error) {
	switch cfg.Queue.Provider {
	case config.ProviderNATS:
		natsCfg := cfg.Queue.NATS
		if natsCfg.Visibility <= 0 {
			natsCfg.Visibility = cfg.Queue.Visibility
		}
		transport, err := natsqueue.New(natsCfg, logger.Named("nats"))
		if err != nil {
			return nil, fmt.Errorf("init nats transport: %w", err)
		}
		return transport, nil
	case config.ProviderMemory:
		return queuememory.NewTransport(cfg.Queue.Visibility, clock), nil
	default:
		return nil, fmt.Errorf("unknown queue provider %q", cfg.Queue.Provider)
	}
}

func newJobStore(ctx context.Context, cfg config.Config) (crawler.JobStore, func(), error) {
	switch cfg.JobStore.Provider {
	case config.ProviderPostgres:
		store, err := postgres.New(ctx, cfg.JobStore.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres job store: %w", err)
		}
		return store, store.Close, nil
	case config.ProviderMemory:
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown jobstore provider %q", cfg.JobStore.Provider)
	}
}

func newArtifactStore(ctx context.Context, cfg config.Config, clock crawler.Clock, logger *zap.Logger) (*crawler.ArtifactStore, func(), error) {
	var (
		provider storage.Provider
		closeFn  = func() {}
	)
	switch cfg.Storage.Provider {
	case config.ProviderLocal:
		store, err := local.New(cfg.Storage.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("init local storage: %w", err)
		}
		provider = store
	case config.ProviderGCS:
		store, err := gcs.New(ctx, cfg.Storage.GCSBucket, logger.Named("gcs"))
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs storage: %w", err)
		}
		provider = store
		closeFn = func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("close gcs storage failed", zap.Error(cerr))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
	return crawler.NewArtifactStore(provider, clock), closeFn, nil
}

func newPublisher(ctx context.Context, cfg config.Config) (crawler.Publisher, error) {
	switch cfg.Publisher.Provider {
	case config.ProviderPubSub:
		publisher, err := pubsub.New(ctx, cfg.Publisher.PubSub)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		return publisher, nil
	case config.ProviderMemory:
		return pubmemory.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown publisher provider %q", cfg.Publisher.Provider)
	}
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile excluded pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
