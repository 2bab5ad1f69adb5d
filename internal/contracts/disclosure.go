package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies the disclosure feed a row came from.
// ⭐ SSOT: 소스 타입은 이 enum 으로만 표현 (closed set)
type SourceType string

const (
	SourceDailyETF SourceType = "DAILY_ETF"
	Source13F      SourceType = "SEC_13F"
	SourceNPort    SourceType = "N_PORT"
	SourceForm4    SourceType = "FORM_4"
)

// AllSourceTypes returns every supported source type in a stable order
func AllSourceTypes() []SourceType {
	return []SourceType{SourceDailyETF, Source13F, SourceNPort, SourceForm4}
}

// ParseSourceType accepts the canonical name or a short alias (etf, 13f, nport, form4)
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAILY_ETF", "ETF":
		return SourceDailyETF, nil
	case "SEC_13F", "13F":
		return Source13F, nil
	case "N_PORT", "NPORT", "N-PORT":
		return SourceNPort, nil
	case "FORM_4", "FORM4", "4":
		return SourceForm4, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSourceType, s)
}

func (s SourceType) String() string { return string(s) }

// Valid reports whether s is one of the closed set
func (s SourceType) Valid() bool {
	switch s {
	case SourceDailyETF, Source13F, SourceNPort, SourceForm4:
		return true
	}
	return false
}

// NormalizedDisclosure is one row per (investor, period, security) from a single source
type NormalizedDisclosure struct {
	InvestorID   string           `json:"investor_id"`
	PeriodDate   time.Time        `json:"period_date"`
	FiledDate    time.Time        `json:"filed_date"`
	Ticker       string           `json:"ticker"`
	SecurityName string           `json:"security_name"`
	CUSIP        string           `json:"cusip,omitempty"`
	Shares       int64            `json:"shares"`
	MarketValue  *decimal.Decimal `json:"market_value,omitempty"`
	WeightPct    *float64         `json:"weight_pct,omitempty"` // 0 ~ 100
	SourceType   SourceType       `json:"source_type"`
}

// SeriesSeparator joins an owner and an issuer in a per-issuer series id
const SeriesSeparator = ":"

// PerIssuer reports whether documents of this source cover a single issuer.
// Such sources keep one series per (owner, issuer) instead of one per owner.
func (s SourceType) PerIssuer() bool {
	return s == SourceForm4
}

// IssuerSeriesID returns the series id of owner's position in issuer
func IssuerSeriesID(owner, issuer string) string {
	return owner + SeriesSeparator + issuer
}

// SeriesOwner returns the owner part of a series id (the id itself for whole-portfolio series)
func SeriesOwner(id string) string {
	if i := strings.Index(id, SeriesSeparator); i >= 0 {
		return id[:i]
	}
	return id
}

// SnapshotKey identifies a snapshot: (investor, period, source)
type SnapshotKey struct {
	InvestorID string
	PeriodDate time.Time
	SourceType SourceType
}

func (k SnapshotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.InvestorID, k.SourceType, k.PeriodDate.Format("2006-01-02"))
}

// Snapshot is the full set of positions of one investor at one period date.
// Disclosures are ordered by ticker and never mutated after commit.
type Snapshot struct {
	InvestorID  string                 `json:"investor_id"`
	PeriodDate  time.Time              `json:"period_date"`
	SourceType  SourceType             `json:"source_type"`
	FiledDate   time.Time              `json:"filed_date"`
	Disclosures []NormalizedDisclosure `json:"disclosures"`
}

// NewSnapshot validates rows and builds a ticker-ordered snapshot.
// Every row must belong to the same (investor, period, source) and tickers must be unique.
func NewSnapshot(investorID string, source SourceType, period, filed time.Time, rows []NormalizedDisclosure) (Snapshot, error) {
	if investorID == "" {
		return Snapshot{}, fmt.Errorf("%w: empty investor id", ErrInvalidSnapshot)
	}
	if !source.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %w: %q", ErrInvalidSnapshot, ErrUnknownSourceType, source)
	}
	if period.IsZero() {
		return Snapshot{}, fmt.Errorf("%w: zero period date", ErrInvalidSnapshot)
	}

	period = DateOnly(period)
	seen := make(map[string]struct{}, len(rows))
	out := make([]NormalizedDisclosure, 0, len(rows))

	for _, row := range rows {
		if row.InvestorID != investorID {
			return Snapshot{}, fmt.Errorf("%w: row %s belongs to investor %q", ErrInvalidSnapshot, row.Ticker, row.InvestorID)
		}
		if row.SourceType != source {
			return Snapshot{}, fmt.Errorf("%w: row %s has source %s", ErrInvalidSnapshot, row.Ticker, row.SourceType)
		}
		if !DateOnly(row.PeriodDate).Equal(period) {
			return Snapshot{}, fmt.Errorf("%w: row %s has period %s", ErrInvalidSnapshot, row.Ticker, row.PeriodDate.Format("2006-01-02"))
		}
		if _, dup := seen[row.Ticker]; dup {
			return Snapshot{}, fmt.Errorf("%w: duplicate ticker %s", ErrInvalidSnapshot, row.Ticker)
		}
		seen[row.Ticker] = struct{}{}

		row.PeriodDate = period
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })

	if filed.IsZero() {
		filed = period
	}

	return Snapshot{
		InvestorID:  investorID,
		PeriodDate:  period,
		SourceType:  source,
		FiledDate:   DateOnly(filed),
		Disclosures: out,
	}, nil
}

// Key returns the snapshot's identity
func (s Snapshot) Key() SnapshotKey {
	return SnapshotKey{InvestorID: s.InvestorID, PeriodDate: s.PeriodDate, SourceType: s.SourceType}
}

// ByTicker builds a ticker → disclosure lookup
func (s Snapshot) ByTicker() map[string]NormalizedDisclosure {
	m := make(map[string]NormalizedDisclosure, len(s.Disclosures))
	for _, d := range s.Disclosures {
		m[d.Ticker] = d
	}
	return m
}

// Tickers returns the snapshot's tickers in order
func (s Snapshot) Tickers() []string {
	out := make([]string, len(s.Disclosures))
	for i, d := range s.Disclosures {
		out[i] = d.Ticker
	}
	return out
}

// DateOnly truncates t to a UTC calendar date
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
