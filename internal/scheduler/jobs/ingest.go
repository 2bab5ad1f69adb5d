package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/holdwatch/backend/internal/changes"
	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/ingest"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
	"github.com/wonny/holdwatch/backend/internal/watchlist"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// IngestJob refreshes every watchlist investor of one source, then
// recomputes change views for the series that received a new snapshot
// ⭐ SSOT: 소스별 적재 스케줄은 이 Job에서만
type IngestJob struct {
	source    contracts.SourceType
	ingester  *ingest.Ingester
	runner    *changes.Runner // optional
	watchlist *watchlist.Watchlist
	logger    *logger.Logger
}

// NewIngestJob creates a new ingest job for source
func NewIngestJob(source contracts.SourceType, ing *ingest.Ingester, runner *changes.Runner, wl *watchlist.Watchlist, log *logger.Logger) *IngestJob {
	return &IngestJob{
		source:    source,
		ingester:  ing,
		runner:    runner,
		watchlist: wl,
		logger:    log.WithField("job", "ingest").WithField("source_type", string(source)),
	}
}

// Name returns the job name
func (j *IngestJob) Name() string {
	return "ingest_" + strings.ToLower(string(j.source))
}

// Schedule follows the source's refresh policy
func (j *IngestJob) Schedule() string {
	return snapshot.PolicyFor(j.source).CronSchedule
}

// Run ingests all investors; it fails only when every investor failed
func (j *IngestJob) Run(ctx context.Context) error {
	investors := j.watchlist.Active(j.source)
	if len(investors) == 0 {
		j.logger.Debug("No investors for source")
		return nil
	}

	reports, err := j.ingester.IngestAll(ctx, investors)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", j.source, err)
	}

	failed := 0
	var reqs []changes.Request
	for _, r := range reports {
		if r.Error != nil {
			failed++
			continue
		}
		if len(r.Committed) == 0 {
			continue
		}
		latest := r.Committed[len(r.Committed)-1]
		inv, _ := j.watchlist.Investor(r.InvestorID, j.source)
		reqs = append(reqs, changes.Request{
			InvestorID:   latest.InvestorID,
			InvestorName: inv.Name,
			Source:       j.source,
			AsOf:         latest.PeriodDate,
			Windowed:     j.source == contracts.SourceDailyETF,
		})
	}

	if failed == len(reports) {
		return fmt.Errorf("ingest %s: all %d investors failed", j.source, failed)
	}

	if j.runner != nil && len(reqs) > 0 {
		j.runner.Run(ctx, reqs)
	}
	return nil
}

// DiffJob recomputes change views for every active investor
type DiffJob struct {
	runner    *changes.Runner
	watchlist *watchlist.Watchlist
	logger    *logger.Logger
	now       func() time.Time
}

// NewDiffJob creates a new diff job
func NewDiffJob(runner *changes.Runner, wl *watchlist.Watchlist, log *logger.Logger) *DiffJob {
	return &DiffJob{
		runner:    runner,
		watchlist: wl,
		logger:    log.WithField("job", "diff"),
		now:       time.Now,
	}
}

// Name returns the job name
func (j *DiffJob) Name() string {
	return "diff_all"
}

// Schedule returns the cron schedule (weekdays 06:00, after the overnight EDGAR ingests)
func (j *DiffJob) Schedule() string {
	return "0 0 6 * * 2-6"
}

// Run computes views as of today; it fails only when every investor failed
func (j *DiffJob) Run(ctx context.Context) error {
	reqs, err := j.runner.Expand(ctx, Requests(j.watchlist, "", j.now()))
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	if len(reqs) == 0 {
		return nil
	}

	results := j.runner.Run(ctx, reqs)
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	if failed == len(results) {
		return fmt.Errorf("diff: all %d investors failed", failed)
	}
	return nil
}

// Requests builds change requests for the active investors of source ("" = all).
// Daily sources are aggregated over the rolling window.
func Requests(wl *watchlist.Watchlist, source contracts.SourceType, asOf time.Time) []changes.Request {
	var reqs []changes.Request
	for _, inv := range wl.Active(source) {
		reqs = append(reqs, changes.Request{
			InvestorID:   inv.ID,
			InvestorName: inv.Name,
			Source:       inv.SourceType,
			AsOf:         asOf,
			Windowed:     inv.SourceType == contracts.SourceDailyETF,
		})
	}
	return reqs
}
