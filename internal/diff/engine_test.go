package diff

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

const investor = "investor-i"

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type holding struct {
	ticker string
	shares int64
	weight *float64
	cusip  string
}

func w(f float64) *float64 { return &f }

func snap(t *testing.T, source contracts.SourceType, period string, holdings ...holding) contracts.Snapshot {
	t.Helper()
	rows := make([]contracts.NormalizedDisclosure, 0, len(holdings))
	for _, h := range holdings {
		rows = append(rows, contracts.NormalizedDisclosure{
			InvestorID: investor,
			PeriodDate: date(period),
			Ticker:     h.ticker,
			CUSIP:      h.cusip,
			Shares:     h.shares,
			WeightPct:  h.weight,
			SourceType: source,
		})
	}
	s, err := contracts.NewSnapshot(investor, source, date(period), time.Time{}, rows)
	require.NoError(t, err)
	return s
}

func etf(t *testing.T, period string, holdings ...holding) contracts.Snapshot {
	return snap(t, contracts.SourceDailyETF, period, holdings...)
}

func TestDiff_Scenarios(t *testing.T) {
	e := New()

	t.Run("added", func(t *testing.T) {
		prev := etf(t, "2024-03-01", holding{ticker: "AAPL", shares: 1000})
		curr := etf(t, "2024-03-04", holding{ticker: "AAPL", shares: 1500})

		changes, err := e.Diff(&prev, curr)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "AAPL", changes[0].Ticker)
		assert.Equal(t, contracts.ChangeAdded, changes[0].ChangeType)
		assert.Equal(t, int64(500), changes[0].SharesDelta)
		assert.Equal(t, int64(1000), changes[0].PreviousShares)
		assert.Equal(t, int64(1500), changes[0].CurrentShares)
	})

	t.Run("sold out when absent", func(t *testing.T) {
		prev := etf(t, "2024-03-01", holding{ticker: "TSLA", shares: 200})
		curr := etf(t, "2024-03-04")

		changes, err := e.Diff(&prev, curr)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, contracts.ChangeSoldOut, changes[0].ChangeType)
		assert.Equal(t, int64(-200), changes[0].SharesDelta)
		assert.Equal(t, int64(0), changes[0].CurrentShares)
	})

	t.Run("first snapshot is all new", func(t *testing.T) {
		curr := etf(t, "2024-03-04", holding{ticker: "NVDA", shares: 50})

		changes, err := e.Diff(nil, curr)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, contracts.ChangeNew, changes[0].ChangeType)
		assert.Equal(t, int64(50), changes[0].SharesDelta)
		assert.Equal(t, contracts.DateRange{Start: date("2024-03-04"), End: date("2024-03-04")}, changes[0].DateRange)
	})

	t.Run("zero-share previous becomes new", func(t *testing.T) {
		prev := etf(t, "2024-03-01", holding{ticker: "XYZ", shares: 0})
		curr := etf(t, "2024-03-04", holding{ticker: "XYZ", shares: 100})

		changes, err := e.Diff(&prev, curr)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, contracts.ChangeNew, changes[0].ChangeType)
		assert.Equal(t, int64(100), changes[0].SharesDelta)
	})

	t.Run("zero-share current becomes sold out", func(t *testing.T) {
		prev := etf(t, "2024-03-01", holding{ticker: "XYZ", shares: 100})
		curr := etf(t, "2024-03-04", holding{ticker: "XYZ", shares: 0})

		changes, err := e.Diff(&prev, curr)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, contracts.ChangeSoldOut, changes[0].ChangeType)
		assert.Equal(t, int64(-100), changes[0].SharesDelta)
	})

	t.Run("reduced", func(t *testing.T) {
		prev := etf(t, "2024-03-01", holding{ticker: "XYZ", shares: 100})
		curr := etf(t, "2024-03-04", holding{ticker: "XYZ", shares: 70})

		changes, err := e.Diff(&prev, curr)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, contracts.ChangeReduced, changes[0].ChangeType)
		assert.Equal(t, int64(-30), changes[0].SharesDelta)
	})
}

func TestDiff_WeightDelta(t *testing.T) {
	prev := etf(t, "2024-03-01",
		holding{ticker: "AAA", shares: 10, weight: w(5)},
		holding{ticker: "BBB", shares: 10, weight: w(5)},
	)
	curr := etf(t, "2024-03-04",
		holding{ticker: "AAA", shares: 20, weight: w(7.5)},
		holding{ticker: "BBB", shares: 5},
	)

	changes, err := New().Diff(&prev, curr)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	require.NotNil(t, changes[0].WeightDelta)
	assert.InDelta(t, 2.5, *changes[0].WeightDelta, 1e-9)
	assert.Nil(t, changes[1].WeightDelta, "partial result when one side lacks weight")
}

func TestDiff_DateRange(t *testing.T) {
	prev := etf(t, "2024-03-01", holding{ticker: "AAA", shares: 10})
	curr := etf(t, "2024-03-04", holding{ticker: "AAA", shares: 20})

	changes, err := New().Diff(&prev, curr)
	require.NoError(t, err)
	assert.Equal(t, date("2024-03-02"), changes[0].DateRange.Start)
	assert.Equal(t, date("2024-03-04"), changes[0].DateRange.End)
}

func TestDiff_Mismatch(t *testing.T) {
	prev := etf(t, "2024-03-01", holding{ticker: "AAA", shares: 10})
	curr := snap(t, contracts.Source13F, "2024-03-31", holding{ticker: "AAA", shares: 20})

	_, err := New().Diff(&prev, curr)

	var mismatch *contracts.SnapshotMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, contracts.SourceDailyETF, mismatch.Previous.SourceType)
	assert.Equal(t, contracts.Source13F, mismatch.Current.SourceType)

	other := etf(t, "2024-03-04")
	other.InvestorID = "someone-else"
	_, err = New().Diff(&prev, other)
	assert.True(t, errors.As(err, &mismatch))
}

func TestDiffWindow(t *testing.T) {
	base := etf(t, "2024-03-01", holding{ticker: "XYZ", shares: 100})
	window := []contracts.Snapshot{
		etf(t, "2024-03-04", holding{ticker: "XYZ", shares: 200}),
		etf(t, "2024-03-05", holding{ticker: "XYZ", shares: 200}),
		etf(t, "2024-03-06", holding{ticker: "XYZ", shares: 170}),
	}

	changes, err := New().DiffWindow(&base, window)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, int64(100), changes[0].SharesDelta)
	assert.Equal(t, date("2024-03-04"), changes[0].DateRange.End)
	assert.Equal(t, int64(-30), changes[1].SharesDelta)
	assert.Equal(t, date("2024-03-06"), changes[1].DateRange.Start)
}

func TestPossibleContinuations(t *testing.T) {
	prev := etf(t, "2024-03-01", holding{ticker: "FB", shares: 100, cusip: "30303M102"})
	curr := etf(t, "2024-03-04", holding{ticker: "META", shares: 100, cusip: "30303M102"})

	changes, err := New().Diff(&prev, curr)
	require.NoError(t, err)
	require.Len(t, changes, 2, "reported as SOLD_OUT + NEW")

	flagged := PossibleContinuations(changes)
	require.Len(t, flagged, 1)
	assert.Equal(t, "FB", flagged[0].SoldOut)
	assert.Equal(t, "META", flagged[0].New)
}

// randomPair builds two snapshots over a shared ticker universe
func randomPair(t *testing.T, rng *rand.Rand) (contracts.Snapshot, contracts.Snapshot) {
	var prevRows, currRows []holding
	for i := 0; i < 40; i++ {
		ticker := fmt.Sprintf("T%02d", i)
		if rng.Intn(4) > 0 {
			prevRows = append(prevRows, holding{ticker: ticker, shares: int64(rng.Intn(5)) * 100})
		}
		if rng.Intn(4) > 0 {
			currRows = append(currRows, holding{ticker: ticker, shares: int64(rng.Intn(5)) * 100})
		}
	}
	return etf(t, "2024-03-01", prevRows...), etf(t, "2024-03-04", currRows...)
}

func TestDiff_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := New()

	for round := 0; round < 25; round++ {
		prev, curr := randomPair(t, rng)

		first, err := e.Diff(&prev, curr)
		require.NoError(t, err)
		second, err := e.Diff(&prev, curr)
		require.NoError(t, err)

		// idempotence: byte-identical output
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		require.Equal(t, string(a), string(b))

		prevMap, currMap := prev.ByTicker(), curr.ByTicker()
		emitted := make(map[string]contracts.HoldingChange)
		for _, c := range first {
			emitted[c.Ticker] = c
		}

		universe := make(map[string]struct{})
		for k := range prevMap {
			universe[k] = struct{}{}
		}
		for k := range currMap {
			universe[k] = struct{}{}
		}

		for ticker := range universe {
			p, inPrev := prevMap[ticker]
			c, inCurr := currMap[ticker]
			change, changed := emitted[ticker]

			if inPrev && inCurr {
				if p.Shares == c.Shares {
					// no-op exclusion
					assert.False(t, changed, ticker)
					continue
				}
				// conservation
				require.True(t, changed, ticker)
				assert.Equal(t, c.Shares-p.Shares, change.SharesDelta, ticker)
				continue
			}

			// completeness: one-sided tickers always surface
			require.True(t, changed, ticker)
			if inCurr {
				assert.Equal(t, contracts.ChangeNew, change.ChangeType)
			} else {
				assert.Equal(t, contracts.ChangeSoldOut, change.ChangeType)
			}
		}
		assert.LessOrEqual(t, len(emitted), len(universe))
	}
}

func TestDiff_FirstSnapshotProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	_, curr := randomPair(t, rng)

	changes, err := New().Diff(nil, curr)
	require.NoError(t, err)
	require.Len(t, changes, len(curr.Disclosures))

	for i, c := range changes {
		assert.Equal(t, contracts.ChangeNew, c.ChangeType)
		assert.Equal(t, curr.Disclosures[i].Shares, c.SharesDelta)
	}
}
