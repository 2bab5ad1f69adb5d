package contracts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func row(ticker string, shares int64) NormalizedDisclosure {
	return NormalizedDisclosure{
		InvestorID: "ark-innovation",
		PeriodDate: day("2024-03-01"),
		Ticker:     ticker,
		Shares:     shares,
		SourceType: SourceDailyETF,
	}
}

func TestParseSourceType(t *testing.T) {
	tests := []struct {
		in   string
		want SourceType
	}{
		{"DAILY_ETF", SourceDailyETF},
		{"etf", SourceDailyETF},
		{"13f", Source13F},
		{"SEC_13F", Source13F},
		{"n-port", SourceNPort},
		{"form4", SourceForm4},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSourceType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}

	_, err := ParseSourceType("10-K")
	assert.True(t, errors.Is(err, ErrUnknownSourceType))
	assert.False(t, SourceType("10-K").Valid())
}

func TestNewSnapshot_SortsByTicker(t *testing.T) {
	snap, err := NewSnapshot("ark-innovation", SourceDailyETF, day("2024-03-01"), time.Time{},
		[]NormalizedDisclosure{row("TSLA", 10), row("AAPL", 5), row("NVDA", 1)})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "NVDA", "TSLA"}, snap.Tickers())
	assert.Equal(t, day("2024-03-01"), snap.FiledDate, "filed date defaults to period")
	assert.Len(t, snap.ByTicker(), 3)
	assert.Equal(t, "ark-innovation/DAILY_ETF/2024-03-01", snap.Key().String())
}

func TestNewSnapshot_Rejects(t *testing.T) {
	other := row("AAPL", 1)
	other.InvestorID = "someone-else"

	wrongSource := row("AAPL", 1)
	wrongSource.SourceType = Source13F

	wrongPeriod := row("AAPL", 1)
	wrongPeriod.PeriodDate = day("2024-02-29")

	tests := []struct {
		name string
		rows []NormalizedDisclosure
	}{
		{"duplicate ticker", []NormalizedDisclosure{row("AAPL", 1), row("AAPL", 2)}},
		{"foreign investor", []NormalizedDisclosure{other}},
		{"foreign source", []NormalizedDisclosure{wrongSource}},
		{"foreign period", []NormalizedDisclosure{wrongPeriod}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot("ark-innovation", SourceDailyETF, day("2024-03-01"), time.Time{}, tt.rows)
			assert.True(t, errors.Is(err, ErrInvalidSnapshot))
		})
	}
}

func TestNewSnapshot_EmptyIsValid(t *testing.T) {
	snap, err := NewSnapshot("ark-innovation", SourceDailyETF, day("2024-03-01"), day("2024-03-02"), nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Disclosures)
	assert.Equal(t, day("2024-03-02"), snap.FiledDate)
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2024, 3, 1, 23, 59, 0, 0, time.FixedZone("KST", 9*3600))
	assert.Equal(t, day("2024-03-01"), DateOnly(ts))
}
