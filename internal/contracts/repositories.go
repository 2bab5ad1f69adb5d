package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// SnapshotStore persists snapshots (append-only) and serves adjacent/window lookups
type SnapshotStore interface {
	// Commit writes the whole snapshot atomically; existing keys return ErrSnapshotExists
	Commit(ctx context.Context, snap Snapshot) error

	// GetAdjacentSnapshots returns the latest snapshot with period <= asOf and the
	// latest one strictly before it for the same source. prev is nil for the first snapshot.
	GetAdjacentSnapshots(ctx context.Context, investorID string, source SourceType, asOf time.Time) (prev *Snapshot, curr Snapshot, err error)

	// GetWindow returns snapshots with start <= period <= end, ordered by period
	GetWindow(ctx context.Context, investorID string, source SourceType, start, end time.Time) ([]Snapshot, error)

	// ListInvestors returns investors having at least one snapshot of source
	ListInvestors(ctx context.Context, source SourceType) ([]string, error)
}

// DailyClose is one end-of-day close price
type DailyClose struct {
	Ticker string
	Date   time.Time
	Close  float64
}

// PriceRepository manages daily close prices used for price ranges
type PriceRepository interface {
	GetCloses(ctx context.Context, tickers []string, from, to time.Time) ([]DailyClose, error)
	SaveBatch(ctx context.Context, closes []DailyClose) error
}

// ChangeView is a computed, cacheable view over two snapshots (or a window)
type ChangeView struct {
	RunID          string         `json:"run_id" msgpack:"run_id"`
	InvestorID     string         `json:"investor_id" msgpack:"investor_id"`
	SourceType     SourceType     `json:"source_type" msgpack:"source_type"`
	PreviousPeriod *time.Time     `json:"previous_period,omitempty" msgpack:"previous_period"`
	CurrentPeriod  time.Time      `json:"current_period" msgpack:"current_period"`
	Window         *DateRange     `json:"window,omitempty" msgpack:"window"` // set for rolling-window views
	Fingerprint    string         `json:"fingerprint" msgpack:"fingerprint"`
	Buys           []RankedChange `json:"buys" msgpack:"buys"`
	Sells          []RankedChange `json:"sells" msgpack:"sells"`
	ComputedAt     time.Time      `json:"computed_at" msgpack:"computed_at"`
}

// ChangeViewRepository persists computed views (recomputable, keyed by fingerprint)
type ChangeViewRepository interface {
	SaveView(ctx context.Context, view ChangeView) error
	// GetLatestView returns the newest rolling-window (windowed) or snapshot-pair view
	GetLatestView(ctx context.Context, investorID string, source SourceType, windowed bool) (*ChangeView, error)
}

// Narrative is the gateway's explanation of one change
type Narrative struct {
	Ticker     string     `json:"ticker"`
	ChangeType ChangeType `json:"change_type"`
	Text       string     `json:"text"`
}

// ReasoningGateway is the external narrative generator boundary
type ReasoningGateway interface {
	Explain(ctx context.Context, records []ChangeRecord) ([]Narrative, error)
}
