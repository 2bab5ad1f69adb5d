package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// CloseFetcher reads daily closes from a quote service
type CloseFetcher interface {
	FetchCloses(ctx context.Context, ticker string, from, to time.Time) ([]contracts.DailyClose, error)
}

// Collector backfills daily closes for changed tickers
// ⭐ SSOT: 종가 수집 오케스트레이션은 여기서만
type Collector struct {
	fetcher CloseFetcher
	repo    contracts.PriceRepository
	logger  *logger.Logger
}

// NewCollector creates a new Collector instance
func NewCollector(fetcher CloseFetcher, repo contracts.PriceRepository, log *logger.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		repo:    repo,
		logger:  log.WithField("module", "price_collector"),
	}
}

// FetchResult represents the result of one ticker
type FetchResult struct {
	Ticker     string
	CloseCount int
	Error      error
}

// Collect fetches and stores closes for tickers with a fixed worker pool.
// A failing ticker is reported in its FetchResult and does not stop the others.
func (c *Collector) Collect(ctx context.Context, tickers []string, from, to time.Time, workers int) []FetchResult {
	if workers < 1 {
		workers = 1
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker_count": len(tickers),
		"from":         from.Format("2006-01-02"),
		"to":           to.Format("2006-01-02"),
		"workers":      workers,
	}).Info("Starting close collection")

	tickerCh := make(chan string, len(tickers))
	resultCh := make(chan FetchResult, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, tickerCh, resultCh, from, to)
		}(i)
	}

	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]FetchResult, 0, len(tickers))
	failCount := 0
	for r := range resultCh {
		results = append(results, r)
		if r.Error != nil {
			failCount++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"success": len(results) - failCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Close collection completed")

	return results
}

func (c *Collector) worker(ctx context.Context, workerID int, tickerCh <-chan string, resultCh chan<- FetchResult, from, to time.Time) {
	for ticker := range tickerCh {
		select {
		case <-ctx.Done():
			resultCh <- FetchResult{Ticker: ticker, Error: ctx.Err()}
			continue
		default:
		}

		closes, err := c.fetcher.FetchCloses(ctx, ticker, from, to)
		if err == nil {
			err = c.repo.SaveBatch(ctx, closes)
		}
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"ticker": ticker,
			}).Warn("Failed to collect closes")
			resultCh <- FetchResult{Ticker: ticker, Error: fmt.Errorf("collect %s: %w", ticker, err)}
			continue
		}

		resultCh <- FetchResult{Ticker: ticker, CloseCount: len(closes)}
	}
}

// Tickers returns the distinct tickers and overall date span of changes
func Tickers(changes []contracts.HoldingChange) ([]string, contracts.DateRange) {
	seen := make(map[string]struct{})
	var tickers []string
	var span contracts.DateRange
	for i, c := range changes {
		if _, ok := seen[c.Ticker]; !ok {
			seen[c.Ticker] = struct{}{}
			tickers = append(tickers, c.Ticker)
		}
		if i == 0 {
			span = c.DateRange
		} else {
			span = span.Union(c.DateRange)
		}
	}
	return tickers, span
}
