package adapter

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Adapter turns one raw vendor document into normalized disclosures.
// Parse is pure apart from reading raw.Body.
// ⭐ SSOT: 모든 소스 파서는 이 인터페이스를 구현
type Adapter interface {
	Parse(raw RawSource) (*ParseResult, error)
}

// RawSource is an unparsed vendor document plus the context known by the caller.
// Source-level fields fill gaps the document itself does not carry (13F info tables have no period).
type RawSource struct {
	SourceType contracts.SourceType
	InvestorID string
	PeriodDate time.Time
	FiledDate  time.Time
	Name       string
	Body       []byte
}

// ParseResult holds parsed rows plus the per-row failures collected on the way.
// TotalRows counts candidate rows; skipped rows (options, footers, blank lines) are not candidates.
type ParseResult struct {
	SourceType  contracts.SourceType
	Disclosures []contracts.NormalizedDisclosure
	Rejected    []*contracts.MalformedSourceError
	Skipped     int
	TotalRows   int
}

// FailureRate returns rejected / total candidate rows
func (r *ParseResult) FailureRate() float64 {
	if r.TotalRows == 0 {
		return 0
	}
	return float64(len(r.Rejected)) / float64(r.TotalRows)
}

// Snapshots groups the disclosures into one snapshot per (investor, period)
func (r *ParseResult) Snapshots() ([]contracts.Snapshot, error) {
	type key struct {
		investor string
		period   time.Time
	}

	groups := make(map[key][]contracts.NormalizedDisclosure)
	filed := make(map[key]time.Time)
	var order []key

	for _, d := range r.Disclosures {
		k := key{investor: d.InvestorID, period: contracts.DateOnly(d.PeriodDate)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d)
		if d.FiledDate.After(filed[k]) {
			filed[k] = d.FiledDate
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].investor != order[j].investor {
			return order[i].investor < order[j].investor
		}
		return order[i].period.Before(order[j].period)
	})

	out := make([]contracts.Snapshot, 0, len(order))
	for _, k := range order {
		snap, err := contracts.NewSnapshot(k.investor, r.SourceType, k.period, filed[k], groups[k])
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// CheckFailureRate fails the whole refresh when more than threshold of the rows were malformed.
// A threshold breach usually means the vendor changed its format.
func CheckFailureRate(result *ParseResult, threshold float64) error {
	if result.TotalRows == 0 {
		return fmt.Errorf("%w: %s document has no rows", contracts.ErrSourceRejected, result.SourceType)
	}
	if rate := result.FailureRate(); rate > threshold {
		return fmt.Errorf("%w: %d/%d rows malformed (%.0f%% > %.0f%%)",
			contracts.ErrSourceRejected, len(result.Rejected), result.TotalRows, rate*100, threshold*100)
	}
	return nil
}

// Options configures adapters that need reference data
type Options struct {
	Resolver CUSIPResolver
}

// For returns the adapter for a source type
func For(source contracts.SourceType, opts Options) (Adapter, error) {
	switch source {
	case contracts.SourceDailyETF:
		return &ETFCSV{}, nil
	case contracts.Source13F:
		return &Form13F{Resolver: opts.Resolver}, nil
	case contracts.SourceNPort:
		return &NPort{Resolver: opts.Resolver}, nil
	case contracts.SourceForm4:
		return &Form4{}, nil
	}
	return nil, fmt.Errorf("%w: %q", contracts.ErrUnknownSourceType, source)
}

// CUSIPResolver maps a CUSIP to its ticker
type CUSIPResolver interface {
	Resolve(cusip string) (string, bool)
}

// MapResolver is a static CUSIP → ticker table
type MapResolver map[string]string

// Resolve looks up cusip
func (m MapResolver) Resolve(cusip string) (string, bool) {
	t, ok := m[cusip]
	return t, ok && t != ""
}
