package watchlist

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/holdwatch/backend/internal/aggregate"
	"github.com/wonny/holdwatch/backend/internal/contracts"
)

const sample = `
meta:
  name: test
aggregation:
  policy: net_position
  precedence: [SOLD_OUT]
  window_days: 5
investors:
  - id: ark
    name: ARK
    source_type: etf
    csv_url: https://example.com/arkk.csv
  - id: brk
    name: Berkshire
    source_type: 13f
    cik: "1067983"
  - id: off
    source_type: SEC_13F
    cik: "1"
    disabled: true
cusips:
  "037833100": AAPL
`

func TestLoadRepoWatchlist(t *testing.T) {
	wl, data, err := Load("../../config/watchlist.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.NotEmpty(t, wl.Active(contracts.Source13F))

	ticker, ok := wl.Resolver().Resolve("084670702")
	assert.True(t, ok)
	assert.Equal(t, "BRK.B", ticker)
}

func TestParse(t *testing.T) {
	wl, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, contracts.SourceDailyETF, wl.Investors[0].SourceType, "aliases normalized")
	assert.Equal(t, contracts.Source13F, wl.Investors[1].SourceType)
	assert.Len(t, wl.Active(""), 2)
	assert.Len(t, wl.Active(contracts.Source13F), 1)
	assert.Equal(t, 5*24*time.Hour, wl.Window())

	cfg := wl.AggregateConfig()
	assert.Equal(t, aggregate.PolicyNetPosition, cfg.Policy)
	assert.Equal(t, []contracts.ChangeType{contracts.ChangeSoldOut}, cfg.Precedence)

	inv, ok := wl.Investor("brk", contracts.Source13F)
	require.True(t, ok)
	assert.Equal(t, "Berkshire", inv.Name)
	_, ok = wl.Investor("brk", contracts.SourceNPort)
	assert.False(t, ok)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("investor:\n  - id: x\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Watchlist {
		return &Watchlist{Investors: []Investor{
			{ID: "brk", SourceType: contracts.Source13F, CIK: "1067983"},
		}}
	}

	tests := []struct {
		name   string
		mutate func(w *Watchlist)
		field  string
	}{
		{"ok", func(w *Watchlist) {}, ""},
		{"bad policy", func(w *Watchlist) { w.Aggregation.Policy = "mode" }, "aggregation.policy"},
		{"bad precedence", func(w *Watchlist) { w.Aggregation.Precedence = []string{"HOLD"} }, "aggregation.precedence[0]"},
		{"dup precedence", func(w *Watchlist) { w.Aggregation.Precedence = []string{"NEW", "NEW"} }, "aggregation.precedence[1]"},
		{"no investors", func(w *Watchlist) { w.Investors = nil }, "investors"},
		{"missing id", func(w *Watchlist) { w.Investors[0].ID = "" }, "investors[0].id"},
		{"series separator in id", func(w *Watchlist) { w.Investors[0].ID = "brk:1" }, "investors[0].id"},
		{"bad source", func(w *Watchlist) { w.Investors[0].SourceType = "RSS" }, "investors[0].source_type"},
		{"bad cik", func(w *Watchlist) { w.Investors[0].CIK = "abc" }, "investors[0].cik"},
		{"etf without url", func(w *Watchlist) { w.Investors[0].SourceType = contracts.SourceDailyETF }, "investors[0].csv_url"},
		{"duplicate", func(w *Watchlist) { w.Investors = append(w.Investors, w.Investors[0]) }, "investors[1]"},
		{"bad cusip", func(w *Watchlist) { w.CUSIPs = map[string]string{"123": "X"} }, "cusips"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := valid()
			tt.mutate(w)
			err := Validate(w)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Parse([]byte(sample))
	require.NoError(t, err)
	b, err := Parse([]byte(sample))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, _ := Hash(b)
	assert.Len(t, ha, 64)
	assert.Equal(t, ha, hb)

	b.Investors[0].Name = "changed"
	hc, _ := Hash(b)
	assert.NotEqual(t, ha, hc)
}
