package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeType_Side(t *testing.T) {
	assert.Equal(t, SideBuy, ChangeNew.Side())
	assert.Equal(t, SideBuy, ChangeAdded.Side())
	assert.Equal(t, SideSell, ChangeReduced.Side())
	assert.Equal(t, SideSell, ChangeSoldOut.Side())
}

func TestDateRange(t *testing.T) {
	r := DateRange{Start: day("2024-03-01"), End: day("2024-03-05")}

	assert.True(t, r.Contains(day("2024-03-01")))
	assert.True(t, r.Contains(day("2024-03-05")))
	assert.False(t, r.Contains(day("2024-03-06")))

	u := r.Union(DateRange{Start: day("2024-02-28"), End: day("2024-03-02")})
	assert.Equal(t, day("2024-02-28"), u.Start)
	assert.Equal(t, day("2024-03-05"), u.End)
	assert.Equal(t, "2024-02-28~2024-03-05", u.String())
}

func TestPriceRange_Midpoint(t *testing.T) {
	assert.InDelta(t, 15.0, PriceRange{Low: 10, High: 20}.Midpoint(), 1e-9)
}

func TestFingerprint(t *testing.T) {
	changes := []HoldingChange{
		{InvestorID: "i", Ticker: "AAPL", ChangeType: ChangeAdded, SharesDelta: 500},
		{InvestorID: "i", Ticker: "TSLA", ChangeType: ChangeSoldOut, SharesDelta: -200},
	}

	a, err := Fingerprint(changes)
	require.NoError(t, err)
	b, err := Fingerprint(append([]HoldingChange(nil), changes...))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changes[0].SharesDelta = 501
	c, err := Fingerprint(changes)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	empty, err := Fingerprint(nil)
	require.NoError(t, err)
	emptySlice, err := Fingerprint([]HoldingChange{})
	require.NoError(t, err)
	assert.Equal(t, empty, emptySlice)
}

func TestNewChangeRecord(t *testing.T) {
	w := 1.25
	rc := RankedChange{
		Change: HoldingChange{
			InvestorID:   "berkshire",
			SourceType:   Source13F,
			Ticker:       "AAPL",
			SecurityName: "APPLE INC",
			ChangeType:   ChangeReduced,
			SharesDelta:  -100,
			WeightDelta:  &w,
			DateRange:    DateRange{Start: day("2024-01-01"), End: day("2024-03-31")},
		},
		Side: SideSell,
		Rank: 2,
	}

	rec := NewChangeRecord(rc, "Berkshire Hathaway")
	assert.Equal(t, "APPLE INC", rec.CompanyName)
	assert.Equal(t, "Berkshire Hathaway", rec.InvestorName)
	assert.Equal(t, 2, rec.Rank)
	assert.Equal(t, SideSell, rec.Side)
	assert.Equal(t, int64(-100), rec.SharesDelta)
	assert.Equal(t, &w, rec.WeightDelta)
	assert.True(t, rc.IsTopRanked(2))
	assert.False(t, rc.IsTopRanked(1))
}

func TestMalformedSourceError(t *testing.T) {
	err := &MalformedSourceError{Source: SourceDailyETF, Name: "ARKK.csv", Row: 3, Field: "shares", Reason: "not a number"}
	assert.Equal(t, "DAILY_ETF ARKK.csv row 3: shares: not a number", err.Error())
}
