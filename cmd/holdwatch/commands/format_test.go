package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/holdwatch/backend/internal/changes"
	"github.com/wonny/holdwatch/backend/internal/contracts"
)

func f(v float64) *float64 { return &v }

func TestFormatShares(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatShares(tt.in))
	}
	assert.Equal(t, "+1,000", formatSigned(1000))
	assert.Equal(t, "-1,000", formatSigned(-1000))
}

func TestFormatOptional(t *testing.T) {
	assert.Equal(t, "-", formatWeight(nil))
	assert.Equal(t, "+1.50%", formatWeight(f(1.5)))
	assert.Equal(t, "-", formatPriceRange(nil))
	assert.Equal(t, "10.00~12.50", formatPriceRange(&contracts.PriceRange{Low: 10, High: 12.5}))
	assert.Equal(t, "-", formatMoney(nil))
	assert.Equal(t, "$2.50M", formatMoney(f(2_500_000)))
	assert.Equal(t, "$1.20B", formatMoney(f(1_200_000_000)))
	assert.Equal(t, "$512", formatMoney(f(512)))
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "postgresql://app:***@db:5432/holdwatch", maskPassword("postgresql://app:secret@db:5432/holdwatch"))
	assert.Equal(t, "postgresql://db/holdwatch", maskPassword("postgresql://db/holdwatch"))
	assert.Equal(t, "***", maskPassword("::not a url"))
}

func TestFilterRequests(t *testing.T) {
	reqs := []changes.Request{
		{InvestorID: "ark-arkk", Source: contracts.SourceDailyETF, Windowed: true},
		{InvestorID: "berkshire", Source: contracts.Source13F},
	}

	got := filterRequests(append([]changes.Request(nil), reqs...), "berkshire", false)
	assert.Len(t, got, 1)
	assert.Equal(t, "berkshire", got[0].InvestorID)
	assert.False(t, got[0].Windowed)

	got = filterRequests(append([]changes.Request(nil), reqs...), "", true)
	assert.Len(t, got, 2)
	for _, r := range got {
		assert.True(t, r.Windowed)
	}
}

func TestParseDateFlag(t *testing.T) {
	d, err := parseDateFlag("period", "")
	assert.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDateFlag("period", "2024-03-31")
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-31", d.Format("2006-01-02"))

	_, err = parseDateFlag("period", "03/31/2024")
	assert.ErrorContains(t, err, "--period")
}
