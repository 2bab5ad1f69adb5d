package adapter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// candidate is a parsed row before ticker policy, merging and weight derivation
type candidate struct {
	row        int
	investorID string
	period     time.Time
	filed      time.Time
	rawTicker  string
	literal    bool // rawTicker is an identifier (CUSIP fallback), not a symbol
	name       string
	cusip      string
	shares     int64
	value      *decimal.Decimal
	weight     *float64
}

// builder collects candidates and per-row failures for one document
type builder struct {
	raw    RawSource
	source contracts.SourceType
	result *ParseResult
	rows   []candidate
}

func newBuilder(raw RawSource, source contracts.SourceType) *builder {
	return &builder{
		raw:    raw,
		source: source,
		result: &ParseResult{SourceType: source},
	}
}

// reject records a malformed candidate row
func (b *builder) reject(row int, field, reason string) {
	b.result.TotalRows++
	b.rejectCounted(row, field, reason)
}

func (b *builder) rejectCounted(row int, field, reason string) {
	b.result.Rejected = append(b.result.Rejected, &contracts.MalformedSourceError{
		Source: b.source,
		Name:   b.raw.Name,
		Row:    row,
		Field:  field,
		Reason: reason,
	})
}

// skip counts a row that is not a holding (footer, option, principal amount)
func (b *builder) skip() {
	b.result.Skipped++
}

// add accepts a candidate row; investor/period/filed gaps are filled from the raw source
func (b *builder) add(c candidate) {
	b.result.TotalRows++

	if c.investorID == "" {
		c.investorID = b.raw.InvestorID
	}
	if c.period.IsZero() {
		c.period = b.raw.PeriodDate
	}
	if c.filed.IsZero() {
		c.filed = b.raw.FiledDate
	}

	switch {
	case c.investorID == "":
		b.rejectCounted(c.row, "investor_id", "missing")
		return
	case c.period.IsZero():
		b.rejectCounted(c.row, "period_date", "missing")
		return
	case c.rawTicker == "":
		b.rejectCounted(c.row, "ticker", "missing")
		return
	}

	c.period = contracts.DateOnly(c.period)
	if c.filed.IsZero() {
		c.filed = c.period
	}
	b.rows = append(b.rows, c)
}

type portfolioKey struct {
	investor string
	period   time.Time
}

type tickerKey struct {
	portfolioKey
	ticker string
}

type normalizedRow struct {
	candidate
	base  string
	class string
}

// build applies the ticker policy, merges duplicates and derives missing weights.
// A share class is always kept as BASE.CLASS so a security carries the same
// ticker in every period regardless of what else the document holds.
func (b *builder) build() *ParseResult {
	merged := make(map[tickerKey]*contracts.NormalizedDisclosure)
	var order []tickerKey

	for _, c := range b.rows {
		n := normalizedRow{candidate: c}
		if c.literal {
			n.base = c.rawTicker
		} else {
			n.base, n.class = NormalizeTicker(c.rawTicker)
		}
		if n.base == "" {
			b.rejectCounted(c.row, "ticker", fmt.Sprintf("unusable ticker %q", c.rawTicker))
			continue
		}

		pk := portfolioKey{n.investorID, n.period}
		ticker := ClassTicker(n.base, n.class)

		k := tickerKey{pk, ticker}
		existing, ok := merged[k]
		if !ok {
			merged[k] = &contracts.NormalizedDisclosure{
				InvestorID:   n.investorID,
				PeriodDate:   n.period,
				FiledDate:    n.filed,
				Ticker:       ticker,
				SecurityName: n.name,
				CUSIP:        n.cusip,
				Shares:       n.shares,
				MarketValue:  n.value,
				WeightPct:    n.weight,
				SourceType:   b.source,
			}
			order = append(order, k)
			continue
		}

		if existing.CUSIP != "" && n.cusip != "" && existing.CUSIP != n.cusip {
			b.rejectCounted(n.row, "ticker",
				fmt.Sprintf("ambiguous ticker %s: cusip %s vs %s", ticker, existing.CUSIP, n.cusip))
			continue
		}

		existing.Shares += n.shares
		existing.MarketValue = addMoney(existing.MarketValue, n.value)
		existing.WeightPct = addWeight(existing.WeightPct, n.weight)
		if existing.CUSIP == "" {
			existing.CUSIP = n.cusip
		}
		if existing.SecurityName == "" {
			existing.SecurityName = n.name
		}
	}

	out := make([]contracts.NormalizedDisclosure, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}

	deriveWeights(out)
	b.result.Disclosures = out
	return b.result
}

// deriveWeights fills missing weights as value / Σ value × 100 per portfolio,
// only when every row of that portfolio carries a market value.
func deriveWeights(rows []contracts.NormalizedDisclosure) {
	totals := make(map[portfolioKey]decimal.Decimal)
	complete := make(map[portfolioKey]bool)

	for _, r := range rows {
		k := portfolioKey{r.InvestorID, r.PeriodDate}
		if _, seen := complete[k]; !seen {
			complete[k] = true
		}
		if r.MarketValue == nil {
			complete[k] = false
			continue
		}
		totals[k] = totals[k].Add(*r.MarketValue)
	}

	for i := range rows {
		r := &rows[i]
		k := portfolioKey{r.InvestorID, r.PeriodDate}
		if r.WeightPct != nil || !complete[k] || !totals[k].IsPositive() {
			continue
		}
		w := r.MarketValue.Mul(hundred).DivRound(totals[k], 6).InexactFloat64()
		r.WeightPct = &w
	}
}

func addMoney(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil || b == nil {
		return nil
	}
	sum := a.Add(*b)
	return &sum
}

func addWeight(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	sum := *a + *b
	return &sum
}
