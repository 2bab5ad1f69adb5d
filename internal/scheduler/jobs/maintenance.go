package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
	"github.com/wonny/holdwatch/backend/internal/watchlist"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// StalenessJob reports series whose latest snapshot is past its source's staleness bound
type StalenessJob struct {
	store     contracts.SnapshotStore
	watchlist *watchlist.Watchlist
	logger    *logger.Logger
	now       func() time.Time
}

// NewStalenessJob creates a new staleness check job
func NewStalenessJob(store contracts.SnapshotStore, wl *watchlist.Watchlist, log *logger.Logger) *StalenessJob {
	return &StalenessJob{
		store:     store,
		watchlist: wl,
		logger:    log.WithField("job", "staleness"),
		now:       time.Now,
	}
}

// Name returns the job name
func (j *StalenessJob) Name() string {
	return "staleness_check"
}

// Schedule returns the cron schedule (daily 08:00)
func (j *StalenessJob) Schedule() string {
	return "0 0 8 * * *"
}

// Run logs one warning per stale or missing series
func (j *StalenessJob) Run(ctx context.Context) error {
	_, err := j.Check(ctx)
	return err
}

// Check returns the freshness of every active series that has a snapshot.
// Per-issuer sources report one entry per issuer series.
func (j *StalenessJob) Check(ctx context.Context) ([]snapshot.Freshness, error) {
	now := j.now()
	var out []snapshot.Freshness

	for _, inv := range j.watchlist.Active("") {
		ids, err := snapshot.Series(ctx, j.store, inv.ID, inv.SourceType)
		if err != nil {
			return out, err
		}
		if len(ids) == 0 {
			j.logger.Investor(inv.ID, string(inv.SourceType)).Warn("No snapshot ingested yet")
			continue
		}

		for _, id := range ids {
			log := j.logger.Investor(id, string(inv.SourceType))

			_, curr, err := j.store.GetAdjacentSnapshots(ctx, id, inv.SourceType, now)
			if errors.Is(err, contracts.ErrSnapshotNotFound) {
				log.Warn("No snapshot ingested yet")
				continue
			}
			if err != nil {
				return out, err
			}

			f := snapshot.FreshnessOf(curr, now)
			out = append(out, f)
			if f.Stale {
				log.WithFields(map[string]interface{}{
					"period": f.Period.Format("2006-01-02"),
					"age":    f.Age.String(),
				}).Warn("Snapshot is stale")
			}
			if f.LateFiled {
				log.WithField("filing_lag", f.FilingLag.String()).Info("Snapshot was filed late")
			}
		}
	}
	return out, nil
}
