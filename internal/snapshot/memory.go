package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

type seriesKey struct {
	investorID string
	source     contracts.SourceType
}

// MemoryStore is an in-process SnapshotStore for tests and offline CLI runs
type MemoryStore struct {
	mu     sync.RWMutex
	series map[seriesKey][]contracts.Snapshot // ordered by period
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[seriesKey][]contracts.Snapshot)}
}

var _ contracts.SnapshotStore = (*MemoryStore)(nil)

// Commit appends snap; an existing key returns ErrSnapshotExists
func (m *MemoryStore) Commit(ctx context.Context, snap contracts.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := seriesKey{snap.InvestorID, snap.SourceType}
	list := m.series[k]

	i := sort.Search(len(list), func(i int) bool { return !list[i].PeriodDate.Before(snap.PeriodDate) })
	if i < len(list) && list[i].PeriodDate.Equal(snap.PeriodDate) {
		return fmt.Errorf("%w: %s", contracts.ErrSnapshotExists, snap.Key())
	}

	list = append(list, contracts.Snapshot{})
	copy(list[i+1:], list[i:])
	list[i] = clone(snap)
	m.series[k] = list
	return nil
}

// GetAdjacentSnapshots returns (previous, current) as of asOf
func (m *MemoryStore) GetAdjacentSnapshots(ctx context.Context, investorID string, source contracts.SourceType, asOf time.Time) (*contracts.Snapshot, contracts.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.series[seriesKey{investorID, source}]
	periods := make([]time.Time, len(list))
	for i, s := range list {
		periods[i] = s.PeriodDate
	}

	p, c, err := pickAdjacent(periods, asOf)
	if err != nil {
		return nil, contracts.Snapshot{}, fmt.Errorf("%s/%s as of %s: %w", investorID, source, asOf.Format("2006-01-02"), err)
	}

	curr := clone(list[c])
	if p < 0 {
		return nil, curr, nil
	}
	prev := clone(list[p])
	return &prev, curr, nil
}

// GetWindow returns snapshots with start <= period <= end
func (m *MemoryStore) GetWindow(ctx context.Context, investorID string, source contracts.SourceType, start, end time.Time) ([]contracts.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := contracts.DateRange{Start: contracts.DateOnly(start), End: contracts.DateOnly(end)}
	var out []contracts.Snapshot
	for _, s := range m.series[seriesKey{investorID, source}] {
		if r.Contains(s.PeriodDate) {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

// ListInvestors returns investors with at least one snapshot of source
func (m *MemoryStore) ListInvestors(ctx context.Context, source contracts.SourceType) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for k, list := range m.series {
		if k.source == source && len(list) > 0 {
			out = append(out, k.investorID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func clone(s contracts.Snapshot) contracts.Snapshot {
	s.Disclosures = append([]contracts.NormalizedDisclosure(nil), s.Disclosures...)
	return s
}
