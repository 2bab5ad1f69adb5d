package snapshot

import (
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

const day = 24 * time.Hour

// Policy is the cadence/freshness contract of one source type
// ⭐ SSOT: 소스별 주기/신선도 가정은 이 테이블에서만 정의
type Policy struct {
	Source          contracts.SourceType
	ExpectedCadence time.Duration // time between two periods; 0 = event driven
	MaxFilingLag    time.Duration // period → public filing
	MaxStaleness    time.Duration // period age beyond which the latest snapshot is stale; 0 = never
	CronSchedule    string        // ingest schedule (cron with seconds)
	Description     string
}

var policies = map[contracts.SourceType]Policy{
	contracts.SourceDailyETF: {
		Source:          contracts.SourceDailyETF,
		ExpectedCadence: day,
		MaxFilingLag:    day,
		MaxStaleness:    4 * day, // long weekend
		CronSchedule:    "0 30 7 * * 2-6",
		Description:     "Daily ETF holdings, published the next morning",
	},
	contracts.Source13F: {
		Source:          contracts.Source13F,
		ExpectedCadence: 92 * day,
		MaxFilingLag:    45 * day,
		MaxStaleness:    137 * day,
		CronSchedule:    "0 0 22 * * 1-5",
		Description:     "Quarterly 13F-HR, filed up to 45 days after quarter end",
	},
	contracts.SourceNPort: {
		Source:          contracts.SourceNPort,
		ExpectedCadence: 92 * day,
		MaxFilingLag:    60 * day,
		MaxStaleness:    152 * day,
		CronSchedule:    "0 15 22 * * 1-5",
		Description:     "Quarterly public N-PORT-P, filed up to 60 days after period end",
	},
	contracts.SourceForm4: {
		Source:          contracts.SourceForm4,
		ExpectedCadence: 0,
		MaxFilingLag:    2 * day,
		MaxStaleness:    0,
		CronSchedule:    "0 0 */2 * * 1-5",
		Description:     "Insider Form 4, filed within two business days of a trade",
	},
}

// PolicyFor returns the policy of source; unknown sources get a zero policy
func PolicyFor(source contracts.SourceType) Policy {
	if p, ok := policies[source]; ok {
		return p
	}
	return Policy{Source: source}
}

// Policies returns every policy in source order
func Policies() []Policy {
	out := make([]Policy, 0, len(policies))
	for _, s := range contracts.AllSourceTypes() {
		out = append(out, policies[s])
	}
	return out
}

// IsStale reports whether snap is older than the source allows
func (p Policy) IsStale(snap contracts.Snapshot, now time.Time) bool {
	if p.MaxStaleness == 0 {
		return false
	}
	return now.Sub(snap.PeriodDate) > p.MaxStaleness
}

// Freshness describes how current a snapshot is
type Freshness struct {
	Source    contracts.SourceType `json:"source_type"`
	Period    time.Time            `json:"period_date"`
	Filed     time.Time            `json:"filed_date"`
	Age       time.Duration        `json:"age"`        // now - period
	FilingLag time.Duration        `json:"filing_lag"` // filed - period
	LateFiled bool                 `json:"late_filed"`
	Stale     bool                 `json:"stale"`
}

// Freshness computes the staleness indicator for snap
func (p Policy) Freshness(snap contracts.Snapshot, now time.Time) Freshness {
	lag := snap.FiledDate.Sub(snap.PeriodDate)
	return Freshness{
		Source:    snap.SourceType,
		Period:    snap.PeriodDate,
		Filed:     snap.FiledDate,
		Age:       now.Sub(snap.PeriodDate),
		FilingLag: lag,
		LateFiled: p.MaxFilingLag > 0 && lag > p.MaxFilingLag,
		Stale:     p.IsStale(snap, now),
	}
}

// IsStale applies the snapshot's own source policy
func IsStale(snap contracts.Snapshot, now time.Time) bool {
	return PolicyFor(snap.SourceType).IsStale(snap, now)
}

// FreshnessOf applies the snapshot's own source policy
func FreshnessOf(snap contracts.Snapshot, now time.Time) Freshness {
	return PolicyFor(snap.SourceType).Freshness(snap, now)
}
