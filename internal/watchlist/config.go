// Package watchlist loads the tracked investors and pipeline policy from YAML.
package watchlist

import "github.com/wonny/holdwatch/backend/internal/contracts"

// Watchlist는 추적 대상 투자자와 집계 정책의 전체 설정
type Watchlist struct {
	Meta        Meta              `yaml:"meta" json:"meta"`
	Aggregation Aggregation       `yaml:"aggregation" json:"aggregation"`
	Reasoning   Reasoning         `yaml:"reasoning" json:"reasoning"`
	Investors   []Investor        `yaml:"investors" json:"investors"`
	CUSIPs      map[string]string `yaml:"cusips" json:"cusips"` // CUSIP → ticker
}

// Meta 메타 정보
type Meta struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// Aggregation 주간 집계 정책
type Aggregation struct {
	Policy     string   `yaml:"policy" json:"policy"`         // precedence | net_position
	Precedence []string `yaml:"precedence" json:"precedence"` // e.g. [NEW, SOLD_OUT]
	WindowDays int      `yaml:"window_days" json:"window_days"`
}

// Reasoning 내러티브 생성 대상
type Reasoning struct {
	TopN int `yaml:"top_n" json:"top_n"`
}

// Investor is one tracked disclosure series
type Investor struct {
	ID         string               `yaml:"id" json:"id"`
	Name       string               `yaml:"name" json:"name"`
	SourceType contracts.SourceType `yaml:"source_type" json:"source_type"`
	CIK        string               `yaml:"cik,omitempty" json:"cik,omitempty"`
	CSVURL     string               `yaml:"csv_url,omitempty" json:"csv_url,omitempty"`
	Disabled   bool                 `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}
