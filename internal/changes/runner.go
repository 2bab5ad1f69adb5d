// Package changes runs the diff → price → aggregate → rank pipeline per
// investor and publishes the resulting change views.
package changes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/holdwatch/backend/internal/aggregate"
	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/diff"
	"github.com/wonny/holdwatch/backend/internal/pricing"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// Config holds runner settings
type Config struct {
	Workers   int
	Window    time.Duration // rolling window for windowed requests
	Aggregate aggregate.Config
	TopN      int // changes per side handed to the reasoning gateway; 0 disables
}

// Request asks for the change view of one investor series
type Request struct {
	InvestorID   string
	InvestorName string
	Source       contracts.SourceType
	AsOf         time.Time
	Windowed     bool // aggregate every snapshot of the trailing window
}

// RunResult is the outcome for one request
type RunResult struct {
	Request       Request
	View          *contracts.ChangeView
	Narratives    []contracts.Narrative
	Continuations []diff.Continuation
	Freshness     snapshot.Freshness
	Duration      time.Duration
	Error         error
}

// Runner computes change views
// ⭐ SSOT: 변동 계산 파이프라인 오케스트레이션은 여기서만
type Runner struct {
	store   contracts.SnapshotStore
	prices  contracts.PriceRepository // optional
	closes  *pricing.Collector        // optional, backfills closes before lookup
	views   contracts.ChangeViewRepository
	cache   *Cache                     // optional
	gateway contracts.ReasoningGateway // optional
	engine  *diff.Engine
	agg     *aggregate.Aggregator
	cfg     Config
	logger  *logger.Logger
	now     func() time.Time
}

// NewRunner creates a new Runner
func NewRunner(store contracts.SnapshotStore, views contracts.ChangeViewRepository, cfg Config, log *logger.Logger) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 7 * 24 * time.Hour
	}
	if cfg.Aggregate.Policy == "" {
		cfg.Aggregate = aggregate.DefaultConfig()
	}
	return &Runner{
		store:  store,
		views:  views,
		engine: diff.New(),
		agg:    aggregate.New(cfg.Aggregate),
		cfg:    cfg,
		logger: log.WithField("module", "changes"),
		now:    time.Now,
	}
}

// WithPrices enables price enrichment
func (r *Runner) WithPrices(repo contracts.PriceRepository) *Runner {
	r.prices = repo
	return r
}

// WithCollector backfills missing closes from the quote service before pricing
func (r *Runner) WithCollector(c *pricing.Collector) *Runner {
	r.closes = c
	return r
}

// WithCache enables the Redis view cache
func (r *Runner) WithCache(cache *Cache) *Runner {
	r.cache = cache
	return r
}

// WithGateway enables the narrative hand-off for the top ranked changes
func (r *Runner) WithGateway(gateway contracts.ReasoningGateway) *Runner {
	r.gateway = gateway
	return r
}

// Compute builds, stores and publishes the view for one request
func (r *Runner) Compute(ctx context.Context, req Request) (*RunResult, error) {
	start := r.now()
	result := &RunResult{Request: req}
	log := r.logger.Investor(req.InvestorID, string(req.Source))

	view, changes, curr, err := r.diff(ctx, req)
	if err != nil {
		return result, err
	}
	result.Freshness = snapshot.FreshnessOf(curr, start)
	if result.Freshness.Stale {
		log.WithField("age", result.Freshness.Age.String()).Warn("Latest snapshot is stale")
	}

	result.Continuations = diff.PossibleContinuations(changes)
	for _, c := range result.Continuations {
		log.WithFields(map[string]interface{}{
			"cusip":    c.CUSIP,
			"sold_out": c.SoldOut,
			"new":      c.New,
		}).Info("Possible corporate action continuation")
	}

	ranking := aggregate.Rank(changes)
	fingerprint, err := contracts.Fingerprint(ranking.Changes())
	if err != nil {
		return result, err
	}

	view.RunID = uuid.New().String()
	view.Fingerprint = fingerprint
	view.Buys = ranking.Buys
	view.Sells = ranking.Sells
	view.ComputedAt = r.now().UTC()
	result.View = view

	if err := r.views.SaveView(ctx, *view); err != nil {
		return result, fmt.Errorf("save view: %w", err)
	}
	if r.cache != nil {
		if err := r.cache.Put(ctx, *view); err != nil {
			log.WithError(err).Warn("Failed to cache change view")
		}
	}

	if r.gateway != nil && r.cfg.TopN > 0 {
		result.Narratives = r.explain(ctx, req, ranking.Top(r.cfg.TopN), log)
	}

	result.Duration = r.now().Sub(start)
	log.WithFields(map[string]interface{}{
		"run_id":      view.RunID,
		"buys":        len(view.Buys),
		"sells":       len(view.Sells),
		"fingerprint": fingerprint[:12],
	}).Info("Computed change view")

	return result, nil
}

// diff loads snapshots for req and returns the priced (and, for windows, aggregated) changes
func (r *Runner) diff(ctx context.Context, req Request) (*contracts.ChangeView, []contracts.HoldingChange, contracts.Snapshot, error) {
	asOf := contracts.DateOnly(req.AsOf)
	view := &contracts.ChangeView{InvestorID: req.InvestorID, SourceType: req.Source}

	if !req.Windowed {
		prev, curr, err := r.store.GetAdjacentSnapshots(ctx, req.InvestorID, req.Source, asOf)
		if err != nil {
			return nil, nil, contracts.Snapshot{}, err
		}
		changes, err := r.engine.Diff(prev, curr)
		if err != nil {
			return nil, nil, curr, err
		}
		if prev != nil {
			p := prev.PeriodDate
			view.PreviousPeriod = &p
		}
		view.CurrentPeriod = curr.PeriodDate
		return view, r.price(ctx, changes), curr, nil
	}

	window := r.window(asOf)

	snaps, err := r.store.GetWindow(ctx, req.InvestorID, req.Source, window.Start, window.End)
	if err != nil {
		return nil, nil, contracts.Snapshot{}, err
	}
	if len(snaps) == 0 {
		return nil, nil, contracts.Snapshot{}, fmt.Errorf("%s/%s window %s: %w", req.InvestorID, req.Source, window, contracts.ErrSnapshotNotFound)
	}

	// 윈도우 직전 스냅샷이 기준점
	var baseline *contracts.Snapshot
	_, before, err := r.store.GetAdjacentSnapshots(ctx, req.InvestorID, req.Source, window.Start.AddDate(0, 0, -1))
	switch {
	case err == nil:
		baseline = &before
		p := before.PeriodDate
		view.PreviousPeriod = &p
	case !errors.Is(err, contracts.ErrSnapshotNotFound):
		return nil, nil, contracts.Snapshot{}, err
	}

	changes, err := r.engine.DiffWindow(baseline, snaps)
	if err != nil {
		return nil, nil, contracts.Snapshot{}, err
	}

	curr := snaps[len(snaps)-1]
	view.CurrentPeriod = curr.PeriodDate
	view.Window = &window

	// 가격은 일별 변동 단위로 붙인 뒤 집계에서 범위를 넓힘
	return view, r.agg.Aggregate(r.price(ctx, changes), window), curr, nil
}

// window returns the trailing aggregation window ending at asOf
func (r *Runner) window(asOf time.Time) contracts.DateRange {
	days := int(r.cfg.Window / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	asOf = contracts.DateOnly(asOf)
	return contracts.DateRange{Start: asOf.AddDate(0, 0, 1-days), End: asOf}
}

// Latest returns the most recent view for req without recomputing it.
// The cache is consulted first, keyed by the snapshot pair (or window) current at req.AsOf;
// on a miss the newest persisted view is returned. nil means nothing was computed yet.
func (r *Runner) Latest(ctx context.Context, req Request) (*contracts.ChangeView, error) {
	if r.cache != nil {
		var (
			view *contracts.ChangeView
			hit  bool
			err  error
		)
		if req.Windowed {
			view, hit, err = r.cache.GetWindow(ctx, req.InvestorID, req.Source, r.window(req.AsOf))
		} else {
			prev, curr, lerr := r.store.GetAdjacentSnapshots(ctx, req.InvestorID, req.Source, contracts.DateOnly(req.AsOf))
			if lerr == nil {
				var prevPeriod *time.Time
				if prev != nil {
					prevPeriod = &prev.PeriodDate
				}
				view, hit, err = r.cache.Get(ctx, req.InvestorID, req.Source, prevPeriod, curr.PeriodDate)
			}
		}
		if err != nil {
			r.logger.WithError(err).Warn("Change view cache read failed")
		}
		if hit {
			return view, nil
		}
	}
	return r.views.GetLatestView(ctx, req.InvestorID, req.Source, req.Windowed)
}

// price enriches changes; a price lookup failure leaves the fields nil
func (r *Runner) price(ctx context.Context, changes []contracts.HoldingChange) []contracts.HoldingChange {
	if r.prices == nil || len(changes) == 0 {
		return changes
	}
	if r.closes != nil {
		tickers, span := pricing.Tickers(changes)
		r.closes.Collect(ctx, tickers, span.Start, span.End, r.cfg.Workers)
	}
	book, err := pricing.LoadBook(ctx, r.prices, changes)
	if err != nil {
		r.logger.WithError(err).Warn("Price lookup failed, continuing without prices")
		return changes
	}
	return pricing.Apply(changes, book)
}

func (r *Runner) explain(ctx context.Context, req Request, top aggregate.Ranking, log *logger.Logger) []contracts.Narrative {
	ranked := top.All()
	if len(ranked) == 0 {
		return nil
	}

	records := make([]contracts.ChangeRecord, len(ranked))
	for i, rc := range ranked {
		records[i] = contracts.NewChangeRecord(rc, req.InvestorName)
	}

	narratives, err := r.gateway.Explain(ctx, records)
	if err != nil {
		// 내러티브는 부가 기능이므로 실패해도 뷰는 유지
		log.WithError(err).Warn("Reasoning gateway failed")
		return nil
	}
	return narratives
}

// Expand replaces each per-issuer request by one request per stored issuer series.
// Owners with no series yet are dropped.
func (r *Runner) Expand(ctx context.Context, reqs []Request) ([]Request, error) {
	out := make([]Request, 0, len(reqs))
	for _, req := range reqs {
		ids, err := snapshot.Series(ctx, r.store, req.InvestorID, req.Source)
		if err != nil {
			return nil, fmt.Errorf("series %s/%s: %w", req.InvestorID, req.Source, err)
		}
		for _, id := range ids {
			series := req
			series.InvestorID = id
			out = append(out, series)
		}
	}
	return out, nil
}

// Run computes views for all requests with a fixed worker pool.
// A failing investor is recorded in its RunResult and does not block the others.
func (r *Runner) Run(ctx context.Context, reqs []Request) []RunResult {
	r.logger.WithFields(map[string]interface{}{
		"requests": len(reqs),
		"workers":  r.cfg.Workers,
	}).Info("Starting change run")

	type job struct {
		idx int
		req Request
	}

	results := make([]RunResult, len(reqs))
	jobCh := make(chan job, len(reqs))

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if err := ctx.Err(); err != nil {
					results[j.idx] = RunResult{Request: j.req, Error: err}
					continue
				}
				res, err := r.Compute(ctx, j.req)
				res.Error = err
				if err != nil {
					r.logger.WithError(err).
						WithField("investor_id", j.req.InvestorID).
						Error("Change computation failed")
				}
				results[j.idx] = *res
			}
		}()
	}

	for i, req := range reqs {
		jobCh <- job{idx: i, req: req}
	}
	close(jobCh)
	wg.Wait()

	failed := 0
	for _, res := range results {
		if res.Error != nil {
			failed++
		}
	}
	r.logger.WithFields(map[string]interface{}{
		"success": len(results) - failed,
		"failed":  failed,
	}).Info("Change run completed")

	return results
}
