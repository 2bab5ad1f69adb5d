package watchlist

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/holdwatch/backend/internal/adapter"
	"github.com/wonny/holdwatch/backend/internal/aggregate"
	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Load reads a watchlist file and returns it with the raw bytes
// ⭐ SSOT: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Watchlist, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read watchlist: %w", err)
	}

	wl, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return wl, data, nil
}

// Parse decodes and validates watchlist YAML
func Parse(data []byte) (*Watchlist, error) {
	var wl Watchlist
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&wl); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}

	if err := Validate(&wl); err != nil {
		return nil, err
	}
	return &wl, nil
}

// Hash generates SHA256 hash from the watchlist (canonical JSON)
// 주의: encoding/json은 map 키를 정렬하므로 cusips도 재현 가능
func Hash(wl *Watchlist) (string, error) {
	jsonBytes, err := json.Marshal(wl)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Resolver returns the CUSIP → ticker table for 13F and N-PORT adapters
func (w *Watchlist) Resolver() adapter.MapResolver {
	return adapter.MapResolver(w.CUSIPs)
}

// AggregateConfig returns the aggregation policy
func (w *Watchlist) AggregateConfig() aggregate.Config {
	cfg := aggregate.DefaultConfig()
	if p, err := aggregate.ParsePolicy(w.Aggregation.Policy); err == nil {
		cfg.Policy = p
	}
	if len(w.Aggregation.Precedence) > 0 {
		cfg.Precedence = nil
		for _, s := range w.Aggregation.Precedence {
			cfg.Precedence = append(cfg.Precedence, contracts.ChangeType(s))
		}
	}
	return cfg
}

// Window returns the aggregation window, 7 days when unset
func (w *Watchlist) Window() time.Duration {
	if w.Aggregation.WindowDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(w.Aggregation.WindowDays) * 24 * time.Hour
}

// Active returns enabled investors, optionally limited to one source
func (w *Watchlist) Active(source contracts.SourceType) []Investor {
	var out []Investor
	for _, inv := range w.Investors {
		if inv.Disabled {
			continue
		}
		if source != "" && inv.SourceType != source {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// Investor finds an investor series by id and source
func (w *Watchlist) Investor(id string, source contracts.SourceType) (Investor, bool) {
	for _, inv := range w.Investors {
		if inv.ID == id && (source == "" || inv.SourceType == source) {
			return inv, true
		}
	}
	return Investor{}, false
}
