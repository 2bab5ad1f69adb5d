package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/holdwatch/backend/internal/changes"
	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/ingest"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
	"github.com/wonny/holdwatch/backend/internal/watchlist"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

const holdingsCSV = `date,fund,company,ticker,cusip,shares
03/05/2024,ARKK,"TESLA INC",TSLA,88160R101,"1,000"
03/05/2024,ARKK,"ROKU INC",ROKU,77543R102,500
`

type csvSource map[string]string

func (c csvSource) Download(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c[url]; ok {
		return []byte(body), nil
	}
	return nil, errors.New("404")
}

func testWatchlist(t *testing.T) *watchlist.Watchlist {
	t.Helper()
	wl, err := watchlist.Parse([]byte(`
investors:
  - id: ark
    name: ARK Innovation
    source_type: DAILY_ETF
    csv_url: https://issuer/arkk.csv
  - id: brk
    name: Berkshire
    source_type: SEC_13F
    cik: "1067983"
`))
	require.NoError(t, err)
	return wl
}

func TestJobSchedulesParse(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	wl := testWatchlist(t)

	var schedules []string
	for _, source := range contracts.AllSourceTypes() {
		schedules = append(schedules, NewIngestJob(source, nil, nil, wl, logger.Nop()).Schedule())
	}
	schedules = append(schedules,
		NewDiffJob(nil, wl, logger.Nop()).Schedule(),
		NewStalenessJob(nil, wl, logger.Nop()).Schedule(),
	)

	for _, s := range schedules {
		_, err := parser.Parse(s)
		assert.NoError(t, err, s)
	}
	assert.Equal(t, "ingest_sec_13f", NewIngestJob(contracts.Source13F, nil, nil, wl, logger.Nop()).Name())
}

func TestIngestJob_IngestsThenDiffs(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	wl := testWatchlist(t)

	ing := ingest.NewIngester(store, nil, csvSource{"https://issuer/arkk.csv": holdingsCSV}, wl.Resolver(),
		ingest.Config{Workers: 1, MalformedThreshold: 0.5}, logger.Nop())
	views := changes.NewMemoryRepository()
	runner := changes.NewRunner(store, views, changes.Config{Workers: 1}, logger.Nop())

	job := NewIngestJob(contracts.SourceDailyETF, ing, runner, wl, logger.Nop())
	require.NoError(t, job.Run(ctx))

	view, err := views.GetLatestView(ctx, "ark", contracts.SourceDailyETF, true)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Len(t, view.Buys, 2)
	assert.Equal(t, "TSLA", view.Buys[0].Change.Ticker)
	assert.NotNil(t, view.Window)

	// 재실행: 이미 적재된 스냅샷이므로 새 뷰 없음
	require.NoError(t, job.Run(ctx))
}

func TestIngestJob_AllFailed(t *testing.T) {
	store := snapshot.NewMemoryStore()
	wl := testWatchlist(t)
	ing := ingest.NewIngester(store, nil, csvSource{}, nil, ingest.Config{}, logger.Nop())

	err := NewIngestJob(contracts.SourceDailyETF, ing, nil, wl, logger.Nop()).Run(context.Background())
	assert.Error(t, err)

	// no investors for N-PORT → nothing to do
	assert.NoError(t, NewIngestJob(contracts.SourceNPort, ing, nil, wl, logger.Nop()).Run(context.Background()))
}

func TestRequests(t *testing.T) {
	wl := testWatchlist(t)
	asOf := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	reqs := Requests(wl, "", asOf)
	require.Len(t, reqs, 2)
	assert.True(t, reqs[0].Windowed, "daily ETF uses the rolling window")
	assert.False(t, reqs[1].Windowed)
	assert.Equal(t, "Berkshire", reqs[1].InvestorName)

	assert.Len(t, Requests(wl, contracts.Source13F, asOf), 1)
}

func TestStalenessJob_Check(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	wl := testWatchlist(t)

	snap, err := contracts.NewSnapshot("ark", contracts.SourceDailyETF, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Time{}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, snap))

	job := NewStalenessJob(store, wl, logger.Nop())
	job.now = func() time.Time { return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC) }

	out, err := job.Check(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "brk has no snapshot yet")
	assert.True(t, out[0].Stale)
}
