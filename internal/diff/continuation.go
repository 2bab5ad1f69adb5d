package diff

import (
	"sort"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Continuation is a SOLD_OUT + NEW pair sharing a CUSIP under different
// tickers, which is usually a rename or reorganization rather than an exit
// and an entry. Changes are reported as-is; this only flags them.
type Continuation struct {
	CUSIP    string `json:"cusip"`
	SoldOut  string `json:"sold_out_ticker"`
	New      string `json:"new_ticker"`
	Investor string `json:"investor_id"`
}

// PossibleContinuations finds SOLD_OUT/NEW pairs that share a CUSIP
func PossibleContinuations(changes []contracts.HoldingChange) []Continuation {
	exits := make(map[string]contracts.HoldingChange)
	for _, c := range changes {
		if c.ChangeType == contracts.ChangeSoldOut && c.CUSIP != "" {
			exits[c.CUSIP] = c
		}
	}

	var out []Continuation
	for _, c := range changes {
		if c.ChangeType != contracts.ChangeNew || c.CUSIP == "" {
			continue
		}
		exit, ok := exits[c.CUSIP]
		if !ok || exit.Ticker == c.Ticker {
			continue
		}
		out = append(out, Continuation{
			CUSIP:    c.CUSIP,
			SoldOut:  exit.Ticker,
			New:      c.Ticker,
			Investor: c.InvestorID,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CUSIP < out[j].CUSIP })
	return out
}
