// Package main wires together the event pipeline service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/api"
	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/discovery"
	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/extract"
	"github.com/eventscout/eventscout/internal/fetch"
	"github.com/eventscout/eventscout/internal/filter"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/notify"
	"github.com/eventscout/eventscout/internal/pipeline"
	"github.com/eventscout/eventscout/internal/rules"
	"github.com/eventscout/eventscout/internal/search"
	"github.com/eventscout/eventscout/internal/snapshot"
	"github.com/eventscout/eventscout/internal/storage/memory"
	"github.com/eventscout/eventscout/internal/storage/postgres"
)

// conferenceListings are the curated pages scraped by the site source.
var conferenceListings = []discovery.SitePage{
	{Name: "luma-sf", URL: "https://lu.ma/sf", Selectors: []string{"div.event-card", "a.event-link"}},
	{Name: "luma-nyc", URL: "https://lu.ma/nyc", Selectors: []string{"div.event-card", "a.event-link"}},
}

func main() {
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

	clock := event.SystemClock{}
	idGen := event.UUIDGenerator{}
	pauser := &event.TimerPause{}

	fetchClient, closeFetchers, err := buildFetchClient(cfg, pauser, logger)
	if err != nil {
		logger.Fatal("fetch client init failed", zap.Error(err))
	}
	defer closeFetchers()

	if cfg.Extract.BaseURL == "" {
		logger.Fatal("extract.base_url must be set")
	}
	chatSvc, err := extract.NewChatService(extract.ServiceConfig{
		BaseURL: cfg.Extract.BaseURL,
		APIKey:  cfg.Extract.APIKey,
		Model:   cfg.Extract.Model,
		Timeout: time.Duration(cfg.Extract.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Fatal("extraction service init failed", zap.Error(err))
	}
	extractor := extract.NewCascade(chatSvc, logger)
	var validator event.Validator
	if cfg.Extract.Validation {
		validator = extract.NewSemanticValidator(chatSvc, logger)
	}

	ledger, store, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStores()

	var blobs event.BlobStore
	if cfg.Snapshot.GCSBucket != "" {
		gcs, err := snapshot.NewGCSStore(ctx, cfg.Snapshot.GCSBucket)
		if err != nil {
			logger.Warn("snapshot store unavailable, pages will not be archived", zap.Error(err))
		} else {
			defer gcs.Close()
			blobs = gcs
		}
	}

	var publisher event.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		ps, err := notify.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Warn("pubsub unavailable, notifications disabled", zap.Error(err))
		} else {
			defer func() {
				_ = ps.Close()
			}()
			publisher = ps
		}
	}

	var searcher event.Searcher
	if cfg.Discovery.SearchBaseURL != "" {
		searcher, err = search.New(search.Config{
			BaseURL: cfg.Discovery.SearchBaseURL,
			APIKey:  cfg.Discovery.SearchAPIKey,
		})
		if err != nil {
			logger.Fatal("search client init failed", zap.Error(err))
		}
	}

	pipelines := make(map[event.Type]api.Pipeline, 2)
	for _, eventType := range []event.Type{event.TypeConference, event.TypeHackathon} {
		runner, err := buildRunner(cfg, eventType, searcher, fetchClient, extractor, validator,
			ledger, store, blobs, publisher, clock, idGen, pauser, logger)
		if err != nil {
			logger.Fatal("pipeline init failed", zap.String("event_type", string(eventType)), zap.Error(err))
		}
		pipelines[eventType] = runner
	}

	apiServer := api.NewServer(store, ledger, pipelines, idGen, clock, cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildFetchClient(cfg config.Config, pauser event.PauseController, logger *zap.Logger) (*fetch.Client, func(), error) {
	var backends []event.Fetcher
	var closers []func()
	for _, name := range cfg.Fetch.Backends {
		switch name {
		case "colly":
			backends = append(backends, fetch.NewColly(fetch.CollyConfig{
				UserAgent: cfg.Fetch.UserAgent,
				Timeout:   cfg.FetchTimeout(),
			}))
		case "chromedp":
			headless, err := fetch.NewChromedp(fetch.ChromedpConfig{
				MaxParallel:       cfg.Fetch.HeadlessMaxParallel,
				UserAgent:         cfg.Fetch.UserAgent,
				NavigationTimeout: cfg.FetchTimeout(),
			})
			if err != nil {
				logger.Warn("headless backend init failed, skipping", zap.Error(err))
				continue
			}
			closers = append(closers, headless.Close)
			backends = append(backends, headless)
		case "remote":
			remote, err := fetch.NewRemote(fetch.RemoteConfig{
				BaseURL: cfg.Fetch.RemoteBaseURL,
				APIKey:  cfg.Fetch.RemoteAPIKey,
				Timeout: cfg.FetchTimeout(),
			})
			if err != nil {
				return nil, nil, fmt.Errorf("remote backend: %w", err)
			}
			backends = append(backends, remote)
		}
	}

	client, err := fetch.NewClient(fetch.Config{
		PerBackendTimeout:   cfg.FetchTimeout(),
		MaxRateLimitRetries: cfg.Fetch.MaxRateLimitRetries,
		RateLimitBaseDelay:  time.Duration(cfg.Fetch.RateLimitBaseMs) * time.Millisecond,
	}, backends, pauser, logger)
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return client, closeAll, nil
}

func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (event.Ledger, event.EventStore, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("no database configured, using in-memory stores")
		return memory.NewLedger(), memory.NewEventStore(), func() {}, nil
	}
	ledger, err := postgres.NewLedgerStore(ctx, postgres.LedgerStoreConfig{
		DSN:   cfg.DB.DSN,
		Table: cfg.DB.URLsTable,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ledger store: %w", err)
	}
	store, err := postgres.NewEventStore(ctx, postgres.EventStoreConfig{
		DSN:          cfg.DB.DSN,
		Table:        cfg.DB.EventsTable,
		ActionsTable: cfg.DB.ActionsTable,
	})
	if err != nil {
		ledger.Close()
		return nil, nil, nil, fmt.Errorf("event store: %w", err)
	}
	closeAll := func() {
		store.Close()
		ledger.Close()
	}
	return ledger, store, closeAll, nil
}

func buildRunner(
	cfg config.Config,
	eventType event.Type,
	searcher event.Searcher,
	fetchClient *fetch.Client,
	extractor event.Extractor,
	validator event.Validator,
	ledger event.Ledger,
	store event.EventStore,
	blobs event.BlobStore,
	publisher event.Publisher,
	clock event.Clock,
	idGen event.IDGenerator,
	pauser event.PauseController,
	logger *zap.Logger,
) (*pipeline.Runner, error) {
	var sources []event.Source
	if searcher != nil {
		sources = append(sources, discovery.NewSearchSource(discovery.SearchSourceConfig{
			MaxQueries:         cfg.Discovery.MaxQueries,
			MaxResultsPerQuery: cfg.Discovery.MaxResultsPerQuery,
			MaxTotalLinks:      cfg.Discovery.MaxTotalLinks,
		}, searcher, fetchClient, rules.ForType(eventType), clock, logger))
	}
	switch eventType {
	case event.TypeConference:
		sources = append(sources, discovery.NewSiteSource(eventType, conferenceListings, fetchClient, clock, logger))
	case event.TypeHackathon:
		sources = append(sources, discovery.NewPlatformSource(discovery.PlatformSourceConfig{
			Name:      "devpost",
			BaseURL:   cfg.Discovery.DevpostBaseURL,
			MaxPages:  cfg.Discovery.DevpostMaxPages,
			PageDelay: cfg.DevpostPageDelay(),
		}, eventType, fetchClient, pauser, clock, logger))
	}

	orchestrator := discovery.NewOrchestrator(sources, cfg.Discovery.MaxParallelSources, logger)
	chain := filter.NewChain(eventType, validator, clock, logger)

	return pipeline.NewRunner(
		eventType,
		orchestrator,
		ledger,
		fetchClient,
		extractor,
		chain,
		store,
		blobs,
		publisher,
		clock,
		idGen,
		pauser,
		pipeline.Config{
			Workers:        cfg.Pipeline.Workers,
			BatchSize:      cfg.Pipeline.BatchSize,
			BatchPause:     cfg.BatchPause(),
			PerSourceLimit: cfg.Discovery.PerSourceLimit,
			NotifyTopic:    cfg.Pipeline.NotifyTopic,
			ContentType:    cfg.Snapshot.ContentType,
		},
		logger,
	)
}
