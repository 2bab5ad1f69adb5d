package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

type fakeFetcher struct{}

func (fakeFetcher) FetchCloses(ctx context.Context, ticker string, from, to time.Time) ([]contracts.DailyClose, error) {
	if ticker == "BAD" {
		return nil, errors.New("not found")
	}
	return []contracts.DailyClose{{Ticker: ticker, Date: from, Close: 10}}, nil
}

func TestCollector_Collect(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := NewCollector(fakeFetcher{}, repo, logger.Nop())

	results := c.Collect(ctx, []string{"AAPL", "BAD", "MSFT"}, day(1), day(2), 2)
	require.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			assert.Equal(t, "BAD", r.Ticker)
		}
	}
	assert.Equal(t, 1, failed)

	got, err := repo.GetCloses(ctx, []string{"AAPL", "MSFT"}, day(1), day(1))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTickers(t *testing.T) {
	changes := []contracts.HoldingChange{
		{Ticker: "AAPL", DateRange: contracts.DateRange{Start: day(3), End: day(4)}},
		{Ticker: "MSFT", DateRange: contracts.DateRange{Start: day(1), End: day(2)}},
		{Ticker: "AAPL", DateRange: contracts.DateRange{Start: day(5), End: day(6)}},
	}
	tickers, span := Tickers(changes)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
	assert.Equal(t, contracts.DateRange{Start: day(1), End: day(6)}, span)
}
