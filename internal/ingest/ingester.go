// Package ingest fetches raw disclosures, runs them through the source
// adapters and commits the resulting snapshots.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/holdwatch/backend/internal/adapter"
	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/external/edgar"
	"github.com/wonny/holdwatch/backend/internal/watchlist"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// FilingFetcher downloads the latest EDGAR holdings document
type FilingFetcher interface {
	FetchLatest(ctx context.Context, cik string, source contracts.SourceType) (*edgar.Document, error)
}

// CSVFetcher downloads an issuer holdings file
type CSVFetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Config holds ingest settings
type Config struct {
	Workers            int
	MalformedThreshold float64
}

// Ingester runs fetch → adapt → threshold → commit per investor
// ⭐ SSOT: 스냅샷 적재는 여기서만
type Ingester struct {
	store    contracts.SnapshotStore
	filings  FilingFetcher
	csv      CSVFetcher
	resolver adapter.CUSIPResolver
	cfg      Config
	logger   *logger.Logger
}

// NewIngester creates a new Ingester. filings and csv may be nil for file-only ingest.
func NewIngester(store contracts.SnapshotStore, filings FilingFetcher, csv CSVFetcher, resolver adapter.CUSIPResolver, cfg Config, log *logger.Logger) *Ingester {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MalformedThreshold <= 0 {
		cfg.MalformedThreshold = 0.5
	}
	return &Ingester{
		store:    store,
		filings:  filings,
		csv:      csv,
		resolver: resolver,
		cfg:      cfg,
		logger:   log.WithField("module", "ingest"),
	}
}

// Report summarizes one ingest of one raw document
type Report struct {
	InvestorID string
	SourceType contracts.SourceType
	Name       string
	TotalRows  int
	Skipped    int
	Rejected   []*contracts.MalformedSourceError
	Committed  []contracts.SnapshotKey
	Existing   []contracts.SnapshotKey // already ingested, left untouched
	Duration   time.Duration
	Error      error
}

// RowsFailed returns the number of malformed rows
func (r *Report) RowsFailed() int {
	return len(r.Rejected)
}

// Ingest adapts raw and commits one snapshot per (investor, period).
// A rejected source commits nothing.
func (i *Ingester) Ingest(ctx context.Context, raw adapter.RawSource) (*Report, error) {
	start := time.Now()
	report := &Report{InvestorID: raw.InvestorID, SourceType: raw.SourceType, Name: raw.Name}

	a, err := adapter.For(raw.SourceType, adapter.Options{Resolver: i.resolver})
	if err != nil {
		return report, err
	}

	result, err := a.Parse(raw)
	if err != nil {
		return report, fmt.Errorf("parse %s: %w", raw.Name, err)
	}
	report.TotalRows = result.TotalRows
	report.Skipped = result.Skipped
	report.Rejected = result.Rejected

	log := i.logger.Investor(raw.InvestorID, string(raw.SourceType))
	for _, rej := range result.Rejected {
		log.WithField("row", rej.Row).WithField("field", rej.Field).Warn(rej.Reason)
	}

	if err := adapter.CheckFailureRate(result, i.cfg.MalformedThreshold); err != nil {
		return report, err
	}

	snaps, err := result.Snapshots()
	if err != nil {
		return report, err
	}

	for _, snap := range snaps {
		err := i.store.Commit(ctx, snap)
		switch {
		case errors.Is(err, contracts.ErrSnapshotExists):
			report.Existing = append(report.Existing, snap.Key())
		case err != nil:
			return report, fmt.Errorf("commit %s: %w", snap.Key(), err)
		default:
			report.Committed = append(report.Committed, snap.Key())
		}
	}

	report.Duration = time.Since(start)
	log.WithFields(map[string]interface{}{
		"rows":      report.TotalRows,
		"failed":    report.RowsFailed(),
		"skipped":   report.Skipped,
		"committed": len(report.Committed),
		"existing":  len(report.Existing),
	}).Info("Ingested disclosure")

	return report, nil
}

// Fetch downloads the latest raw document for a watchlist investor
func (i *Ingester) Fetch(ctx context.Context, inv watchlist.Investor) (adapter.RawSource, error) {
	raw := adapter.RawSource{SourceType: inv.SourceType, InvestorID: inv.ID}

	switch inv.SourceType {
	case contracts.SourceDailyETF:
		if i.csv == nil {
			return raw, fmt.Errorf("no csv fetcher configured")
		}
		body, err := i.csv.Download(ctx, inv.CSVURL)
		if err != nil {
			return raw, err
		}
		raw.Name = inv.CSVURL
		raw.Body = body
	default:
		if i.filings == nil {
			return raw, fmt.Errorf("no filing fetcher configured")
		}
		doc, err := i.filings.FetchLatest(ctx, inv.CIK, inv.SourceType)
		if err != nil {
			return raw, err
		}
		raw.Name = doc.Filing.AccessionNumber
		raw.PeriodDate = doc.Filing.ReportDate
		raw.FiledDate = doc.Filing.FilingDate
		raw.Body = doc.Body
	}
	return raw, nil
}

// IngestInvestor fetches and ingests one watchlist investor
func (i *Ingester) IngestInvestor(ctx context.Context, inv watchlist.Investor) *Report {
	raw, err := i.Fetch(ctx, inv)
	if err != nil {
		return &Report{
			InvestorID: inv.ID,
			SourceType: inv.SourceType,
			Error:      fmt.Errorf("fetch %s: %w", inv.ID, err),
		}
	}

	report, err := i.Ingest(ctx, raw)
	report.Error = err
	return report
}

// IngestAll ingests investors concurrently, at most cfg.Workers at a time.
// Per-investor failures land in their Report; only cancellation is returned.
func (i *Ingester) IngestAll(ctx context.Context, investors []watchlist.Investor) ([]*Report, error) {
	reports := make([]*Report, len(investors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Workers)

	for idx, inv := range investors {
		idx, inv := idx, inv
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[idx] = i.IngestInvestor(gctx, inv)
			if reports[idx].Error != nil {
				i.logger.WithError(reports[idx].Error).
					WithField("investor_id", inv.ID).
					Error("Ingest failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return compact(reports), err
	}

	failed := 0
	for _, r := range reports {
		if r.Error != nil {
			failed++
		}
	}
	i.logger.WithFields(map[string]interface{}{
		"investors": len(investors),
		"failed":    failed,
	}).Info("Ingest run completed")

	return reports, nil
}

func compact(reports []*Report) []*Report {
	out := reports[:0]
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
