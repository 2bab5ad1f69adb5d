package snapshot

import (
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// pickAdjacent returns the indices of (previous, current) in periods sorted ascending:
// current = latest period <= asOf, previous = the one right before it (-1 if none).
func pickAdjacent(periods []time.Time, asOf time.Time) (prev, curr int, err error) {
	asOf = contracts.DateOnly(asOf)
	curr = -1
	for i, p := range periods {
		if p.After(asOf) {
			break
		}
		curr = i
	}
	if curr < 0 {
		return -1, -1, contracts.ErrSnapshotNotFound
	}
	return curr - 1, curr, nil
}
