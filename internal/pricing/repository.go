package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Repository implements contracts.PriceRepository on holdings.daily_closes
// ⭐ SSOT: 종가 데이터 저장소는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new price repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.PriceRepository = (*Repository)(nil)

// GetCloses returns closes for tickers with from <= date <= to
func (r *Repository) GetCloses(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.DailyClose, error) {
	query := `
		SELECT ticker, trade_date, close_price
		FROM holdings.daily_closes
		WHERE ticker = ANY($1) AND trade_date BETWEEN $2 AND $3
		ORDER BY ticker, trade_date
	`

	rows, err := r.pool.Query(ctx, query, tickers, from, to)
	if err != nil {
		return nil, fmt.Errorf("query closes: %w", err)
	}
	defer rows.Close()

	var closes []contracts.DailyClose
	for rows.Next() {
		var c contracts.DailyClose
		if err := rows.Scan(&c.Ticker, &c.Date, &c.Close); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

// SaveBatch upserts closes in one round trip
func (r *Repository) SaveBatch(ctx context.Context, closes []contracts.DailyClose) error {
	if len(closes) == 0 {
		return nil
	}

	query := `
		INSERT INTO holdings.daily_closes (ticker, trade_date, close_price, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			close_price = EXCLUDED.close_price,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, c := range closes {
		batch.Queue(query, c.Ticker, contracts.DateOnly(c.Date), c.Close)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d closes: %w", len(closes), err)
	}
	return nil
}

// MemoryRepository is an in-process PriceRepository for tests and offline runs
type MemoryRepository struct {
	mu     sync.RWMutex
	closes map[string]map[string]contracts.DailyClose // ticker → date → close
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{closes: make(map[string]map[string]contracts.DailyClose)}
}

var _ contracts.PriceRepository = (*MemoryRepository)(nil)

// GetCloses returns closes for tickers with from <= date <= to
func (m *MemoryRepository) GetCloses(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.DailyClose, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	span := contracts.DateRange{Start: contracts.DateOnly(from), End: contracts.DateOnly(to)}
	var out []contracts.DailyClose
	for _, t := range tickers {
		for _, c := range m.closes[t] {
			if span.Contains(c.Date) {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// SaveBatch upserts closes
func (m *MemoryRepository) SaveBatch(ctx context.Context, closes []contracts.DailyClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range closes {
		c.Date = contracts.DateOnly(c.Date)
		if m.closes[c.Ticker] == nil {
			m.closes[c.Ticker] = make(map[string]contracts.DailyClose)
		}
		m.closes[c.Ticker][c.Date.Format("2006-01-02")] = c
	}
	return nil
}
