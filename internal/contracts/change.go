package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ChangeType classifies a holding change between two snapshots
type ChangeType string

const (
	ChangeNew     ChangeType = "NEW"
	ChangeAdded   ChangeType = "ADDED"
	ChangeReduced ChangeType = "REDUCED"
	ChangeSoldOut ChangeType = "SOLD_OUT"
)

// Side is the ranking partition of a change
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Side maps NEW/ADDED to buys and REDUCED/SOLD_OUT to sells
func (c ChangeType) Side() Side {
	if c == ChangeNew || c == ChangeAdded {
		return SideBuy
	}
	return SideSell
}

// PriceRange is the [low, high] close price observed over a date span
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Midpoint returns (low + high) / 2
func (p PriceRange) Midpoint() float64 {
	return (p.Low + p.High) / 2
}

// DateRange is an inclusive [start, end] span of calendar dates
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range (inclusive)
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Union returns the smallest range covering both
func (r DateRange) Union(o DateRange) DateRange {
	out := r
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if o.End.After(out.End) {
		out.End = o.End
	}
	return out
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s~%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

// HoldingChange is the diff of one (investor, ticker) between two snapshots.
// ⭐ SSOT: 값 타입 (immutable). rank 는 RankedChange 로만 표현
type HoldingChange struct {
	InvestorID     string      `json:"investor_id"`
	SourceType     SourceType  `json:"source_type"`
	Ticker         string      `json:"ticker"`
	SecurityName   string      `json:"security_name"`
	CUSIP          string      `json:"cusip,omitempty"`
	ChangeType     ChangeType  `json:"change_type"`
	PreviousShares int64       `json:"previous_shares"`
	CurrentShares  int64       `json:"current_shares"`
	SharesDelta    int64       `json:"shares_delta"`
	WeightDelta    *float64    `json:"weight_delta,omitempty"`
	PriceRange     *PriceRange `json:"price_range,omitempty"`
	EstimatedValue *float64    `json:"estimated_value,omitempty"`
	DateRange      DateRange   `json:"date_range"`
}

// AbsDelta returns |shares_delta|
func (c HoldingChange) AbsDelta() int64 {
	if c.SharesDelta < 0 {
		return -c.SharesDelta
	}
	return c.SharesDelta
}

// RankedChange pairs a change with its 1-based rank inside its side
type RankedChange struct {
	Change HoldingChange `json:"change"`
	Side   Side          `json:"side"`
	Rank   int           `json:"rank"`
}

// IsTopRanked checks if the change is in top N ranks
func (r RankedChange) IsTopRanked(n int) bool {
	return r.Rank <= n && r.Rank > 0
}

// ChangeRecord is the structured record handed to the reasoning gateway
type ChangeRecord struct {
	InvestorID     string      `json:"investor_id"`
	InvestorName   string      `json:"investor_name,omitempty"`
	SourceType     SourceType  `json:"source_type"`
	Ticker         string      `json:"ticker"`
	CompanyName    string      `json:"company_name"`
	CUSIP          string      `json:"cusip,omitempty"`
	ChangeType     ChangeType  `json:"change_type"`
	Side           Side        `json:"side"`
	Rank           int         `json:"rank"`
	SharesDelta    int64       `json:"shares_delta"`
	PreviousShares int64       `json:"previous_shares"`
	CurrentShares  int64       `json:"current_shares"`
	WeightDelta    *float64    `json:"weight_delta"`
	PriceRange     *PriceRange `json:"price_range"`
	EstimatedValue *float64    `json:"estimated_value"`
	DateRange      DateRange   `json:"date_range"`
}

// NewChangeRecord flattens a ranked change plus investor metadata
func NewChangeRecord(rc RankedChange, investorName string) ChangeRecord {
	c := rc.Change
	return ChangeRecord{
		InvestorID:     c.InvestorID,
		InvestorName:   investorName,
		SourceType:     c.SourceType,
		Ticker:         c.Ticker,
		CompanyName:    c.SecurityName,
		CUSIP:          c.CUSIP,
		ChangeType:     c.ChangeType,
		Side:           rc.Side,
		Rank:           rc.Rank,
		SharesDelta:    c.SharesDelta,
		PreviousShares: c.PreviousShares,
		CurrentShares:  c.CurrentShares,
		WeightDelta:    c.WeightDelta,
		PriceRange:     c.PriceRange,
		EstimatedValue: c.EstimatedValue,
		DateRange:      c.DateRange,
	}
}

// Fingerprint hashes the canonical JSON encoding of changes.
// Same snapshots → same changes → same fingerprint.
func Fingerprint(changes []HoldingChange) (string, error) {
	if changes == nil {
		changes = []HoldingChange{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("marshal changes: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
