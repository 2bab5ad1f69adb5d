package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Policy selects how a group's change type is decided
type Policy string

const (
	// PolicyPrecedence: the first precedence type seen in the group wins, else the net sign
	PolicyPrecedence Policy = "precedence"
	// PolicyNetPosition: a pure function of the group's starting and ending shares
	PolicyNetPosition Policy = "net_position"
)

// Config configures the aggregator
type Config struct {
	Policy     Policy
	Precedence []contracts.ChangeType
}

// DefaultConfig returns NEW > SOLD_OUT > net sign
func DefaultConfig() Config {
	return Config{
		Policy:     PolicyPrecedence,
		Precedence: []contracts.ChangeType{contracts.ChangeNew, contracts.ChangeSoldOut},
	}
}

// ParsePolicy accepts "precedence" or "net_position"
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyPrecedence, "":
		return PolicyPrecedence, nil
	case PolicyNetPosition, "net-position", "netposition":
		return PolicyNetPosition, nil
	}
	return "", fmt.Errorf("unknown aggregation policy %q", s)
}

// Aggregator collapses same-ticker changes within a window into one change
// ⭐ SSOT: 기간 내 동일 종목 변동 병합 규칙은 여기서만
type Aggregator struct {
	cfg Config
}

// New creates an aggregator; a zero Config means DefaultConfig
func New(cfg Config) *Aggregator {
	if cfg.Policy == "" {
		cfg.Policy = PolicyPrecedence
	}
	if cfg.Policy == PolicyPrecedence && len(cfg.Precedence) == 0 {
		cfg.Precedence = DefaultConfig().Precedence
	}
	return &Aggregator{cfg: cfg}
}

type groupKey struct {
	investorID string
	source     contracts.SourceType
	ticker     string
}

// Aggregate groups changes whose date range ends inside window by ticker.
// Deltas are summed, date ranges unioned, price ranges widened to
// [min low, max high]. Groups whose net delta is zero and that hold no
// precedence type are dropped. Output is ordered by ticker.
func (a *Aggregator) Aggregate(changes []contracts.HoldingChange, window contracts.DateRange) []contracts.HoldingChange {
	groups := make(map[groupKey][]contracts.HoldingChange)
	for _, c := range changes {
		if !window.Contains(c.DateRange.End) {
			continue
		}
		k := groupKey{c.InvestorID, c.SourceType, c.Ticker}
		groups[k] = append(groups[k], c)
	}

	out := make([]contracts.HoldingChange, 0, len(groups))
	for _, members := range groups {
		if merged, ok := a.merge(members); ok {
			out = append(out, merged)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		if out[i].InvestorID != out[j].InvestorID {
			return out[i].InvestorID < out[j].InvestorID
		}
		return out[i].SourceType < out[j].SourceType
	})
	return out
}

// merge folds one ticker's records; ok=false when the group nets to nothing
func (a *Aggregator) merge(members []contracts.HoldingChange) (contracts.HoldingChange, bool) {
	// chronological, with a total order so input order never matters
	sort.Slice(members, func(i, j int) bool {
		x, y := members[i], members[j]
		if !x.DateRange.End.Equal(y.DateRange.End) {
			return x.DateRange.End.Before(y.DateRange.End)
		}
		if !x.DateRange.Start.Equal(y.DateRange.Start) {
			return x.DateRange.Start.Before(y.DateRange.Start)
		}
		if x.SharesDelta != y.SharesDelta {
			return x.SharesDelta < y.SharesDelta
		}
		return x.ChangeType < y.ChangeType
	})

	first, last := members[0], members[len(members)-1]

	merged := last
	merged.PreviousShares = first.PreviousShares
	merged.CurrentShares = last.CurrentShares
	merged.DateRange = first.DateRange
	merged.SharesDelta = 0
	merged.PriceRange = nil
	merged.EstimatedValue = nil

	seen := make(map[contracts.ChangeType]bool)
	weight, weightComplete := 0.0, true

	for _, m := range members {
		merged.SharesDelta += m.SharesDelta
		merged.DateRange = merged.DateRange.Union(m.DateRange)
		merged.PriceRange = widen(merged.PriceRange, m.PriceRange)
		seen[m.ChangeType] = true

		if m.WeightDelta == nil {
			weightComplete = false
		} else {
			weight += *m.WeightDelta
		}
		if merged.SecurityName == "" {
			merged.SecurityName = m.SecurityName
		}
		if merged.CUSIP == "" {
			merged.CUSIP = m.CUSIP
		}
	}

	merged.WeightDelta = nil
	if weightComplete {
		merged.WeightDelta = &weight
	}

	kind, ok := a.classify(seen, merged.PreviousShares, merged.PreviousShares+merged.SharesDelta, merged.SharesDelta)
	if !ok {
		return contracts.HoldingChange{}, false
	}
	merged.ChangeType = kind

	if merged.PriceRange != nil {
		v := float64(merged.AbsDelta()) * merged.PriceRange.Midpoint()
		merged.EstimatedValue = &v
	}
	return merged, true
}

// classify decides the group's change type once, from the group as a whole
func (a *Aggregator) classify(seen map[contracts.ChangeType]bool, start, end, net int64) (contracts.ChangeType, bool) {
	if a.cfg.Policy == PolicyNetPosition {
		return netPosition(start, end)
	}

	for _, t := range a.cfg.Precedence {
		if seen[t] {
			return t, true
		}
	}
	switch {
	case net > 0:
		return contracts.ChangeAdded, true
	case net < 0:
		return contracts.ChangeReduced, true
	}
	return "", false
}

// netPosition is the ABSENT/NEW/ADDED/REDUCED/SOLD_OUT state machine,
// evaluated once on (starting shares, ending shares)
func netPosition(start, end int64) (contracts.ChangeType, bool) {
	switch {
	case start == end:
		return "", false
	case start == 0:
		return contracts.ChangeNew, true
	case end == 0:
		return contracts.ChangeSoldOut, true
	case end > start:
		return contracts.ChangeAdded, true
	default:
		return contracts.ChangeReduced, true
	}
}

func widen(acc, p *contracts.PriceRange) *contracts.PriceRange {
	if p == nil {
		return acc
	}
	if acc == nil {
		cp := *p
		return &cp
	}
	out := *acc
	if p.Low < out.Low {
		out.Low = p.Low
	}
	if p.High > out.High {
		out.High = p.High
	}
	return &out
}
