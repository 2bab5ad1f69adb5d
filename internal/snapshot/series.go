package snapshot

import (
	"context"
	"strings"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Series returns the stored series ids of one watchlist investor.
// Whole-portfolio sources have exactly one series (the investor id); per-issuer
// sources have one per issuer ("owner:issuer"), discovered from the store.
func Series(ctx context.Context, store contracts.SnapshotStore, investorID string, source contracts.SourceType) ([]string, error) {
	if !source.PerIssuer() || strings.Contains(investorID, contracts.SeriesSeparator) {
		return []string{investorID}, nil
	}

	ids, err := store.ListInvestors(ctx, source)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		if id != investorID && contracts.SeriesOwner(id) == investorID {
			out = append(out, id)
		}
	}
	return out, nil
}
