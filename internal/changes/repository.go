package changes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Repository persists computed change views on holdings.change_views
// ⭐ SSOT: 변동 뷰 저장은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new change view repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.ChangeViewRepository = (*Repository)(nil)

// SaveView stores one run's view. Views are append-only; reruns add a new run id.
func (r *Repository) SaveView(ctx context.Context, view contracts.ChangeView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}

	query := `
		INSERT INTO holdings.change_views (
			run_id, investor_id, source_type, previous_period, current_period,
			windowed, fingerprint, payload, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		view.RunID,
		view.InvestorID,
		string(view.SourceType),
		view.PreviousPeriod,
		view.CurrentPeriod,
		view.Window != nil,
		view.Fingerprint,
		payload,
		view.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert change view %s: %w", view.RunID, err)
	}
	return nil
}

// GetLatestView returns the newest view of the given kind for a series; (nil, nil) when none exists
func (r *Repository) GetLatestView(ctx context.Context, investorID string, source contracts.SourceType, windowed bool) (*contracts.ChangeView, error) {
	query := `
		SELECT payload
		FROM holdings.change_views
		WHERE investor_id = $1 AND source_type = $2 AND windowed = $3
		ORDER BY current_period DESC, computed_at DESC
		LIMIT 1
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, investorID, string(source), windowed).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest view: %w", err)
	}

	var view contracts.ChangeView
	if err := json.Unmarshal(payload, &view); err != nil {
		return nil, fmt.Errorf("unmarshal view: %w", err)
	}
	return &view, nil
}

// MemoryRepository keeps views in process (tests, dry runs)
type MemoryRepository struct {
	mu    sync.Mutex
	views []contracts.ChangeView
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

var _ contracts.ChangeViewRepository = (*MemoryRepository)(nil)

// SaveView appends view
func (m *MemoryRepository) SaveView(ctx context.Context, view contracts.ChangeView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, view)
	return nil
}

// GetLatestView returns the newest view of the given kind for a series; (nil, nil) when none exists
func (m *MemoryRepository) GetLatestView(ctx context.Context, investorID string, source contracts.SourceType, windowed bool) (*contracts.ChangeView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *contracts.ChangeView
	for i := range m.views {
		v := m.views[i]
		if v.InvestorID != investorID || v.SourceType != source || (v.Window != nil) != windowed {
			continue
		}
		if latest == nil || v.CurrentPeriod.After(latest.CurrentPeriod) ||
			(v.CurrentPeriod.Equal(latest.CurrentPeriod) && !v.ComputedAt.Before(latest.ComputedAt)) {
			latest = &v
		}
	}
	return latest, nil
}
