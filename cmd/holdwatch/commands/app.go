package commands

import (
	"fmt"

	"github.com/wonny/holdwatch/backend/internal/changes"
	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/external/edgar"
	"github.com/wonny/holdwatch/backend/internal/external/etf"
	"github.com/wonny/holdwatch/backend/internal/external/quotes"
	"github.com/wonny/holdwatch/backend/internal/ingest"
	"github.com/wonny/holdwatch/backend/internal/pricing"
	"github.com/wonny/holdwatch/backend/internal/reasoning"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
	"github.com/wonny/holdwatch/backend/internal/watchlist"
	"github.com/wonny/holdwatch/backend/pkg/config"
	"github.com/wonny/holdwatch/backend/pkg/database"
	"github.com/wonny/holdwatch/backend/pkg/httputil"
	"github.com/wonny/holdwatch/backend/pkg/logger"
	"github.com/wonny/holdwatch/backend/pkg/redis"
)

// app wires every pipeline component from config
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	redis     *redis.Client
	watchlist *watchlist.Watchlist

	store    contracts.SnapshotStore
	prices   *pricing.Repository
	ingester *ingest.Ingester
	runner   *changes.Runner
}

func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load watchlist
	path := watchlistPath
	if path == "" {
		path = cfg.Pipeline.WatchlistPath
	}
	wl, _, err := watchlist.Load(path)
	if err != nil {
		return nil, err
	}
	if hash, err := watchlist.Hash(wl); err == nil {
		log.WithFields(map[string]interface{}{
			"path":      path,
			"investors": len(wl.Investors),
			"hash":      hash[:12],
		}).Debug("Watchlist loaded")
	}

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Connect to redis (disabled → no-op)
	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	// 6. External clients (one HTTP client each; headers and limits differ)
	edgarClient := edgar.NewClient(httputil.New(cfg, log), cfg.EDGAR, log)
	if rdb.Enabled() {
		edgarClient.WithSharedLimit(redis.NewRateLimiter(rdb, "holdwatch"), cfg.EDGAR.RequestsPerSecond)
	}
	etfClient := etf.NewClient(httputil.New(cfg, log), log)

	// 7. Repositories
	store := snapshot.NewPostgresStore(db.Pool)
	prices := pricing.NewRepository(db.Pool)
	views := changes.NewRepository(db.Pool)

	// 8. Pipeline
	ingester := ingest.NewIngester(store, edgarClient, etfClient, wl.Resolver(), ingest.Config{
		Workers:            cfg.Pipeline.Workers,
		MalformedThreshold: cfg.Pipeline.MalformedThreshold,
	}, log)

	topN := wl.Reasoning.TopN
	if topN == 0 {
		topN = cfg.Reasoning.TopN
	}
	window := cfg.Pipeline.AggregationWindow
	if wl.Aggregation.WindowDays > 0 {
		window = wl.Window()
	}

	runner := changes.NewRunner(store, views, changes.Config{
		Workers:   cfg.Pipeline.Workers,
		Window:    window,
		Aggregate: wl.AggregateConfig(),
		TopN:      topN,
	}, log).
		WithPrices(prices).
		WithCache(changes.NewCache(rdb, cfg.Pipeline.CacheTTL))

	if cfg.Quotes.Enabled {
		quoteClient := quotes.NewClient(httputil.New(cfg, log), cfg.Quotes.BaseURL, log)
		runner.WithCollector(pricing.NewCollector(quoteClient, prices, log))
	}
	if cfg.Reasoning.Enabled {
		httpClient := httputil.NewWithTimeout(cfg, log, cfg.Reasoning.Timeout)
		runner.WithGateway(reasoning.NewHTTPGateway(httpClient, cfg.Reasoning.URL, cfg.Reasoning.APIKey, log))
	}

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     rdb,
		watchlist: wl,
		store:     store,
		prices:    prices,
		ingester:  ingester,
		runner:    runner,
	}, nil
}

func (a *app) Close() {
	_ = a.redis.Close()
	a.db.Close()
}
