// Package diff compares two snapshots of one investor and classifies each
// ticker's movement as NEW, ADDED, REDUCED or SOLD_OUT.
//
// Diffing is pure in-memory computation over committed snapshots; the same
// two snapshots always produce the same, ticker-ordered change list.
package diff

import (
	"sort"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Engine computes holding changes between snapshots
// ⭐ SSOT: 변동 분류 규칙은 여기서만
type Engine struct{}

// New creates a diff engine
func New() *Engine {
	return &Engine{}
}

// Diff compares prev (nil for a first snapshot) with curr.
// Snapshots of different sources or investors return *SnapshotMismatchError.
func (e *Engine) Diff(prev *contracts.Snapshot, curr contracts.Snapshot) ([]contracts.HoldingChange, error) {
	if prev != nil && (prev.SourceType != curr.SourceType || prev.InvestorID != curr.InvestorID) {
		return nil, &contracts.SnapshotMismatchError{Previous: prev.Key(), Current: curr.Key()}
	}

	span := dateRange(prev, curr)
	currMap := curr.ByTicker()
	prevMap := map[string]contracts.NormalizedDisclosure{}
	if prev != nil {
		prevMap = prev.ByTicker()
	}

	changes := make([]contracts.HoldingChange, 0, len(currMap))

	for ticker, c := range currMap {
		p, held := prevMap[ticker]
		if !held {
			changes = append(changes, newChange(curr, c, span))
			continue
		}
		if change, ok := compare(curr, p, c, span); ok {
			changes = append(changes, change)
		}
	}

	for ticker, p := range prevMap {
		if _, ok := currMap[ticker]; ok {
			continue
		}
		changes = append(changes, soldOut(curr, p, span))
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Ticker < changes[j].Ticker })
	return changes, nil
}

// DiffWindow diffs each adjacent pair of baseline → window[0] → window[1] ...
// window must be ordered by period; baseline may be nil.
func (e *Engine) DiffWindow(baseline *contracts.Snapshot, window []contracts.Snapshot) ([]contracts.HoldingChange, error) {
	var out []contracts.HoldingChange
	prev := baseline
	for i := range window {
		curr := window[i]
		changes, err := e.Diff(prev, curr)
		if err != nil {
			return nil, err
		}
		out = append(out, changes...)
		prev = &window[i]
	}
	return out, nil
}

// compare classifies a ticker present in both snapshots; ok=false when unchanged
func compare(curr contracts.Snapshot, p, c contracts.NormalizedDisclosure, span contracts.DateRange) (contracts.HoldingChange, bool) {
	delta := c.Shares - p.Shares

	var kind contracts.ChangeType
	switch {
	case delta == 0:
		return contracts.HoldingChange{}, false
	case delta > 0 && p.Shares == 0:
		kind = contracts.ChangeNew
	case delta > 0:
		kind = contracts.ChangeAdded
	case c.Shares == 0:
		kind = contracts.ChangeSoldOut
	default:
		kind = contracts.ChangeReduced
	}

	change := base(curr, c, span)
	change.ChangeType = kind
	change.PreviousShares = p.Shares
	change.CurrentShares = c.Shares
	change.SharesDelta = delta
	change.WeightDelta = weightDelta(p.WeightPct, c.WeightPct)
	if change.CUSIP == "" {
		change.CUSIP = p.CUSIP
	}
	return change, true
}

func newChange(curr contracts.Snapshot, c contracts.NormalizedDisclosure, span contracts.DateRange) contracts.HoldingChange {
	change := base(curr, c, span)
	change.ChangeType = contracts.ChangeNew
	change.CurrentShares = c.Shares
	change.SharesDelta = c.Shares
	return change
}

func soldOut(curr contracts.Snapshot, p contracts.NormalizedDisclosure, span contracts.DateRange) contracts.HoldingChange {
	change := base(curr, p, span)
	change.ChangeType = contracts.ChangeSoldOut
	change.PreviousShares = p.Shares
	change.SharesDelta = -p.Shares
	return change
}

func base(curr contracts.Snapshot, d contracts.NormalizedDisclosure, span contracts.DateRange) contracts.HoldingChange {
	return contracts.HoldingChange{
		InvestorID:   curr.InvestorID,
		SourceType:   curr.SourceType,
		Ticker:       d.Ticker,
		SecurityName: d.SecurityName,
		CUSIP:        d.CUSIP,
		DateRange:    span,
	}
}

// weightDelta is curr - prev when both weights are disclosed
func weightDelta(prev, curr *float64) *float64 {
	if prev == nil || curr == nil {
		return nil
	}
	d := *curr - *prev
	return &d
}

// dateRange spans the trading days a change could have happened on:
// the day after the previous period through the current period.
func dateRange(prev *contracts.Snapshot, curr contracts.Snapshot) contracts.DateRange {
	end := contracts.DateOnly(curr.PeriodDate)
	if prev == nil {
		return contracts.DateRange{Start: end, End: end}
	}
	start := contracts.DateOnly(prev.PeriodDate).AddDate(0, 0, 1)
	if start.After(end) {
		start = end
	}
	return contracts.DateRange{Start: start, End: end}
}
