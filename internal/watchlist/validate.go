package watchlist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/holdwatch/backend/internal/aggregate"
	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// ValidationError 검증 실패 (로드 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	cikPattern   = regexp.MustCompile(`^[0-9]{1,10}$`)
	cusipPattern = regexp.MustCompile(`^[0-9A-Z]{9}$`)
)

// Validate checks the watchlist and normalizes source types in place
func Validate(w *Watchlist) error {
	// === Aggregation ===
	if _, err := aggregate.ParsePolicy(w.Aggregation.Policy); err != nil {
		return ValidationError{"aggregation.policy", err.Error()}
	}
	seenType := make(map[string]bool)
	for i, s := range w.Aggregation.Precedence {
		field := fmt.Sprintf("aggregation.precedence[%d]", i)
		switch contracts.ChangeType(s) {
		case contracts.ChangeNew, contracts.ChangeAdded, contracts.ChangeReduced, contracts.ChangeSoldOut:
		default:
			return ValidationError{field, fmt.Sprintf("unknown change type %q", s)}
		}
		if seenType[s] {
			return ValidationError{field, "duplicate"}
		}
		seenType[s] = true
	}
	if w.Aggregation.WindowDays < 0 {
		return ValidationError{"aggregation.window_days", "must be >= 0"}
	}
	if w.Reasoning.TopN < 0 {
		return ValidationError{"reasoning.top_n", "must be >= 0"}
	}

	// === Investors ===
	if len(w.Investors) == 0 {
		return ValidationError{"investors", "at least one investor required"}
	}
	seen := make(map[string]bool)
	for i := range w.Investors {
		inv := &w.Investors[i]
		field := fmt.Sprintf("investors[%d]", i)

		if strings.TrimSpace(inv.ID) == "" {
			return ValidationError{field + ".id", "required"}
		}
		if strings.Contains(inv.ID, contracts.SeriesSeparator) {
			return ValidationError{field + ".id", fmt.Sprintf("%q is reserved for issuer series", contracts.SeriesSeparator)}
		}
		source, err := contracts.ParseSourceType(string(inv.SourceType))
		if err != nil {
			return ValidationError{field + ".source_type", err.Error()}
		}
		inv.SourceType = source

		key := inv.ID + "/" + string(source)
		if seen[key] {
			return ValidationError{field, fmt.Sprintf("duplicate investor %s", key)}
		}
		seen[key] = true

		switch source {
		case contracts.SourceDailyETF:
			if inv.CSVURL == "" {
				return ValidationError{field + ".csv_url", "required for DAILY_ETF"}
			}
		default:
			if !cikPattern.MatchString(inv.CIK) {
				return ValidationError{field + ".cik", fmt.Sprintf("invalid cik %q", inv.CIK)}
			}
		}
	}

	// === CUSIPs ===
	for cusip, ticker := range w.CUSIPs {
		if !cusipPattern.MatchString(cusip) {
			return ValidationError{"cusips", fmt.Sprintf("invalid cusip %q", cusip)}
		}
		if strings.TrimSpace(ticker) == "" {
			return ValidationError{"cusips." + cusip, "empty ticker"}
		}
	}

	return nil
}
