package changes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/internal/pricing"
	"github.com/wonny/holdwatch/backend/internal/snapshot"
	"github.com/wonny/holdwatch/backend/pkg/config"
	"github.com/wonny/holdwatch/backend/pkg/logger"
	"github.com/wonny/holdwatch/backend/pkg/redis"
)

func day(n int) time.Time {
	return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC)
}

func commit(t *testing.T, store contracts.SnapshotStore, period time.Time, holdings map[string]int64) {
	t.Helper()
	var rows []contracts.NormalizedDisclosure
	for ticker, shares := range holdings {
		rows = append(rows, contracts.NormalizedDisclosure{
			InvestorID: "ark",
			PeriodDate: period,
			Ticker:     ticker,
			CUSIP:      "C-" + ticker,
			Shares:     shares,
			SourceType: contracts.SourceDailyETF,
		})
	}
	snap, err := contracts.NewSnapshot("ark", contracts.SourceDailyETF, period, period, rows)
	require.NoError(t, err)
	require.NoError(t, store.Commit(context.Background(), snap))
}

func seeded(t *testing.T) *snapshot.MemoryStore {
	store := snapshot.NewMemoryStore()
	commit(t, store, day(4), map[string]int64{"TSLA": 100, "ROKU": 50})
	commit(t, store, day(5), map[string]int64{"TSLA": 150, "ROKU": 50, "COIN": 10})
	commit(t, store, day(6), map[string]int64{"TSLA": 120, "COIN": 10})
	return store
}

type fakeGateway struct {
	got []contracts.ChangeRecord
	err error
}

func (g *fakeGateway) Explain(ctx context.Context, records []contracts.ChangeRecord) ([]contracts.Narrative, error) {
	g.got = records
	if g.err != nil {
		return nil, g.err
	}
	out := make([]contracts.Narrative, len(records))
	for i, r := range records {
		out[i] = contracts.Narrative{Ticker: r.Ticker, ChangeType: r.ChangeType, Text: "why " + r.Ticker}
	}
	return out, nil
}

func newRunner(t *testing.T, store contracts.SnapshotStore, views contracts.ChangeViewRepository) *Runner {
	t.Helper()
	r := NewRunner(store, views, Config{Workers: 2, TopN: 1}, logger.Nop())
	r.now = func() time.Time { return day(7) }
	return r
}

func TestCompute_Adjacent(t *testing.T) {
	ctx := context.Background()
	views := NewMemoryRepository()

	prices := pricing.NewMemoryRepository()
	require.NoError(t, prices.SaveBatch(ctx, []contracts.DailyClose{
		{Ticker: "ROKU", Date: day(6), Close: 60},
	}))

	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	gw := &fakeGateway{}
	r := newRunner(t, seeded(t), views).
		WithPrices(prices).
		WithCache(NewCache(client, 0)).
		WithGateway(gw)

	res, err := r.Compute(ctx, Request{InvestorID: "ark", InvestorName: "ARK Innovation", Source: contracts.SourceDailyETF, AsOf: day(6)})
	require.NoError(t, err)

	view := res.View
	require.NotNil(t, view.PreviousPeriod)
	assert.Equal(t, day(5), *view.PreviousPeriod)
	assert.Equal(t, day(6), view.CurrentPeriod)
	assert.Nil(t, view.Window)
	assert.Empty(t, view.Buys)
	require.Len(t, view.Sells, 2)

	roku := view.Sells[0]
	assert.Equal(t, "ROKU", roku.Change.Ticker)
	assert.Equal(t, contracts.ChangeSoldOut, roku.Change.ChangeType)
	assert.Equal(t, 1, roku.Rank)
	require.NotNil(t, roku.Change.EstimatedValue)
	assert.InDelta(t, 3000.0, *roku.Change.EstimatedValue, 1e-9)

	tsla := view.Sells[1]
	assert.Equal(t, int64(-30), tsla.Change.SharesDelta)
	assert.Nil(t, tsla.Change.PriceRange, "no closes for TSLA")

	require.Len(t, gw.got, 1)
	assert.Equal(t, "ARK Innovation", gw.got[0].InvestorName)
	require.Len(t, res.Narratives, 1)
	assert.Equal(t, "why ROKU", res.Narratives[0].Text)

	assert.False(t, res.Freshness.Stale)

	stored, err := views.GetLatestView(ctx, "ark", contracts.SourceDailyETF, false)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, view.RunID, stored.RunID)
}

func TestCompute_Window(t *testing.T) {
	r := newRunner(t, seeded(t), NewMemoryRepository())

	res, err := r.Compute(context.Background(), Request{InvestorID: "ark", Source: contracts.SourceDailyETF, AsOf: day(6), Windowed: true})
	require.NoError(t, err)

	view := res.View
	require.NotNil(t, view.Window)
	assert.Equal(t, day(6), view.Window.End)
	assert.Nil(t, view.PreviousPeriod, "no snapshot before the window")

	require.GreaterOrEqual(t, len(view.Buys), 2)
	assert.Equal(t, "TSLA", view.Buys[0].Change.Ticker)
	assert.Equal(t, contracts.ChangeNew, view.Buys[0].Change.ChangeType)
	assert.Equal(t, int64(120), view.Buys[0].Change.SharesDelta)
	assert.Equal(t, "COIN", view.Buys[1].Change.Ticker)
}

func TestCompute_FingerprintStable(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, seeded(t), NewMemoryRepository())
	req := Request{InvestorID: "ark", Source: contracts.SourceDailyETF, AsOf: day(6)}

	a, err := r.Compute(ctx, req)
	require.NoError(t, err)
	b, err := r.Compute(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, a.View.Fingerprint, b.View.Fingerprint)
	assert.NotEqual(t, a.View.RunID, b.View.RunID)
}

func TestCompute_GatewayFailureKeepsView(t *testing.T) {
	r := newRunner(t, seeded(t), NewMemoryRepository()).WithGateway(&fakeGateway{err: errors.New("down")})

	res, err := r.Compute(context.Background(), Request{InvestorID: "ark", Source: contracts.SourceDailyETF, AsOf: day(6)})
	require.NoError(t, err)
	assert.NotNil(t, res.View)
	assert.Nil(t, res.Narratives)
}

func TestRun_IsolatesFailures(t *testing.T) {
	r := newRunner(t, seeded(t), NewMemoryRepository())

	results := r.Run(context.Background(), []Request{
		{InvestorID: "ark", Source: contracts.SourceDailyETF, AsOf: day(6)},
		{InvestorID: "nobody", Source: contracts.SourceDailyETF, AsOf: day(6)},
		{InvestorID: "ark", Source: contracts.SourceDailyETF, AsOf: day(4)},
	})
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Error)
	assert.ErrorIs(t, results[1].Error, contracts.ErrSnapshotNotFound)
	require.NoError(t, results[2].Error)
	assert.Nil(t, results[2].View.PreviousPeriod, "first snapshot")
	assert.Len(t, results[2].View.Buys, 2)
}

func TestMemoryRepository_Latest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	got, err := repo.GetLatestView(ctx, "ark", contracts.SourceDailyETF, false)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SaveView(ctx, contracts.ChangeView{RunID: "a", InvestorID: "ark", SourceType: contracts.SourceDailyETF, CurrentPeriod: day(6), ComputedAt: day(7)}))
	require.NoError(t, repo.SaveView(ctx, contracts.ChangeView{RunID: "b", InvestorID: "ark", SourceType: contracts.SourceDailyETF, CurrentPeriod: day(5), ComputedAt: day(8)}))

	require.NoError(t, repo.SaveView(ctx, contracts.ChangeView{RunID: "w", InvestorID: "ark", SourceType: contracts.SourceDailyETF, CurrentPeriod: day(6), ComputedAt: day(9),
		Window: &contracts.DateRange{Start: day(0), End: day(6)}}))

	got, err = repo.GetLatestView(ctx, "ark", contracts.SourceDailyETF, false)
	require.NoError(t, err)
	assert.Equal(t, "a", got.RunID)

	got, err = repo.GetLatestView(ctx, "ark", contracts.SourceDailyETF, true)
	require.NoError(t, err)
	assert.Equal(t, "w", got.RunID)
}

func TestLatest_FallsBackToRepository(t *testing.T) {
	ctx := context.Background()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	r := newRunner(t, seeded(t), NewMemoryRepository()).WithCache(NewCache(client, 0))
	req := Request{InvestorID: "ark", Source: contracts.SourceDailyETF, AsOf: day(6)}

	got, err := r.Latest(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, got, "nothing computed yet")

	res, err := r.Compute(ctx, req)
	require.NoError(t, err)

	got, err = r.Latest(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.View.RunID, got.RunID)

	// 윈도우 요청은 쌍(pair) 뷰를 돌려주지 않는다
	win := req
	win.Windowed = true
	got, err = r.Latest(ctx, win)
	require.NoError(t, err)
	assert.Nil(t, got, "pair view must not answer a window request")

	wres, err := r.Compute(ctx, win)
	require.NoError(t, err)

	got, err = r.Latest(ctx, win)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, wres.View.RunID, got.RunID)
	assert.NotNil(t, got.Window)

	got, err = r.Latest(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.View.RunID, got.RunID)
	assert.Nil(t, got.Window)
}

func TestWindow(t *testing.T) {
	r := newRunner(t, seeded(t), NewMemoryRepository())
	w := r.window(time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, day(0), w.Start, "seven days ending on the 6th start on Feb 29")
	assert.Equal(t, day(6), w.End)
}

func TestExpand_PerIssuerSeries(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)
	for _, id := range []string{"insider:1", "insider:2"} {
		snap, err := contracts.NewSnapshot(id, contracts.SourceForm4, day(1), day(2), []contracts.NormalizedDisclosure{
			{InvestorID: id, PeriodDate: day(1), Ticker: "T" + id[len(id)-1:], Shares: 10, SourceType: contracts.SourceForm4},
		})
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, snap))
	}

	r := newRunner(t, store, NewMemoryRepository())
	reqs, err := r.Expand(ctx, []Request{
		{InvestorID: "ark", Source: contracts.SourceDailyETF},
		{InvestorID: "insider", InvestorName: "Insider", Source: contracts.SourceForm4},
		{InvestorID: "quiet", Source: contracts.SourceForm4},
	})
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, "ark", reqs[0].InvestorID)
	assert.Equal(t, "insider:1", reqs[1].InvestorID)
	assert.Equal(t, "insider:2", reqs[2].InvestorID)
	assert.Equal(t, "Insider", reqs[2].InvestorName)
}
