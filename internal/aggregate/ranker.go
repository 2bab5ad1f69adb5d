package aggregate

import (
	"sort"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Ranking is the buys and sells views, each ranked 1..N independently
type Ranking struct {
	Buys  []contracts.RankedChange `json:"buys"`
	Sells []contracts.RankedChange `json:"sells"`
}

// Order returns a copy of changes in ranking order:
// |shares_delta| desc, then date_range.end desc, then ticker asc.
// Downstream tier gating depends on this order.
func Order(changes []contracts.HoldingChange) []contracts.HoldingChange {
	out := append([]contracts.HoldingChange(nil), changes...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(x, y contracts.HoldingChange) bool {
	if ax, ay := x.AbsDelta(), y.AbsDelta(); ax != ay {
		return ax > ay
	}
	if !x.DateRange.End.Equal(y.DateRange.End) {
		return x.DateRange.End.After(y.DateRange.End)
	}
	if x.Ticker != y.Ticker {
		return x.Ticker < y.Ticker
	}
	if x.InvestorID != y.InvestorID {
		return x.InvestorID < y.InvestorID
	}
	return x.ChangeType < y.ChangeType
}

// Rank partitions changes into buys (NEW, ADDED) and sells (REDUCED, SOLD_OUT)
// and assigns 1-based ranks per partition. The input is not modified.
func Rank(changes []contracts.HoldingChange) Ranking {
	var r Ranking
	for _, c := range Order(changes) {
		side := c.ChangeType.Side()
		if side == contracts.SideBuy {
			r.Buys = append(r.Buys, contracts.RankedChange{Change: c, Side: side, Rank: len(r.Buys) + 1})
		} else {
			r.Sells = append(r.Sells, contracts.RankedChange{Change: c, Side: side, Rank: len(r.Sells) + 1})
		}
	}
	return r
}

// Top returns at most n entries of each side
func (r Ranking) Top(n int) Ranking {
	return Ranking{Buys: head(r.Buys, n), Sells: head(r.Sells, n)}
}

// All returns buys followed by sells
func (r Ranking) All() []contracts.RankedChange {
	out := make([]contracts.RankedChange, 0, len(r.Buys)+len(r.Sells))
	out = append(out, r.Buys...)
	return append(out, r.Sells...)
}

// Changes returns the underlying changes of both sides
func (r Ranking) Changes() []contracts.HoldingChange {
	all := r.All()
	out := make([]contracts.HoldingChange, len(all))
	for i, rc := range all {
		out[i] = rc.Change
	}
	return out
}

func head(list []contracts.RankedChange, n int) []contracts.RankedChange {
	if n < 0 || n >= len(list) {
		return list
	}
	return list[:n]
}
