package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/database"
)

// PostgresStore implements contracts.SnapshotStore on holdings.snapshots/disclosures
// ⭐ SSOT: 스냅샷 저장소는 여기서만 (append-only)
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new snapshot store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ contracts.SnapshotStore = (*PostgresStore)(nil)

var disclosureColumns = []string{
	"investor_id", "source_type", "period_date", "ticker", "security_name",
	"cusip", "shares", "market_value", "weight_pct", "filed_date",
}

// Commit writes header + rows in one transaction under a per-investor advisory lock.
// Readers never see a half-written snapshot.
func (s *PostgresStore) Commit(ctx context.Context, snap contracts.Snapshot) error {
	return database.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		// single writer per investor
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, snap.InvestorID); err != nil {
			return fmt.Errorf("acquire investor lock: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO holdings.snapshots (investor_id, source_type, period_date, filed_date, row_count)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (investor_id, source_type, period_date) DO NOTHING
		`, snap.InvestorID, string(snap.SourceType), snap.PeriodDate, snap.FiledDate, len(snap.Disclosures))
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.Key(), err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", contracts.ErrSnapshotExists, snap.Key())
		}

		rows := snap.Disclosures
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"holdings", "disclosures"},
			disclosureColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				d := rows[i]
				value, err := toNumeric(d.MarketValue)
				if err != nil {
					return nil, fmt.Errorf("market value of %s: %w", d.Ticker, err)
				}
				return []any{
					d.InvestorID, string(d.SourceType), d.PeriodDate, d.Ticker, d.SecurityName,
					d.CUSIP, d.Shares, value, d.WeightPct, d.FiledDate,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy disclosures for %s: %w", snap.Key(), err)
		}
		return nil
	})
}

// GetAdjacentSnapshots returns (previous, current) as of asOf for one source
func (s *PostgresStore) GetAdjacentSnapshots(ctx context.Context, investorID string, source contracts.SourceType, asOf time.Time) (*contracts.Snapshot, contracts.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT period_date
		FROM holdings.snapshots
		WHERE investor_id = $1 AND source_type = $2 AND period_date <= $3
		ORDER BY period_date DESC
		LIMIT 2
	`, investorID, string(source), contracts.DateOnly(asOf))
	if err != nil {
		return nil, contracts.Snapshot{}, fmt.Errorf("query adjacent periods: %w", err)
	}
	periods, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, contracts.Snapshot{}, fmt.Errorf("scan adjacent periods: %w", err)
	}

	// pickAdjacent expects ascending order
	for i, j := 0, len(periods)-1; i < j; i, j = i+1, j-1 {
		periods[i], periods[j] = periods[j], periods[i]
	}
	p, c, err := pickAdjacent(periods, asOf)
	if err != nil {
		return nil, contracts.Snapshot{}, fmt.Errorf("%s/%s as of %s: %w", investorID, source, asOf.Format("2006-01-02"), err)
	}

	snaps, err := s.load(ctx, investorID, source, periods[0], periods[c])
	if err != nil {
		return nil, contracts.Snapshot{}, err
	}
	byPeriod := make(map[string]contracts.Snapshot, len(snaps))
	for _, snap := range snaps {
		byPeriod[periodKey(snap.PeriodDate)] = snap
	}

	curr := byPeriod[periodKey(periods[c])]
	if p < 0 {
		return nil, curr, nil
	}
	prev := byPeriod[periodKey(periods[p])]
	return &prev, curr, nil
}

// GetWindow returns snapshots with start <= period <= end, ordered by period
func (s *PostgresStore) GetWindow(ctx context.Context, investorID string, source contracts.SourceType, start, end time.Time) ([]contracts.Snapshot, error) {
	return s.load(ctx, investorID, source, contracts.DateOnly(start), contracts.DateOnly(end))
}

// ListInvestors returns investors with at least one snapshot of source
func (s *PostgresStore) ListInvestors(ctx context.Context, source contracts.SourceType) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT investor_id
		FROM holdings.snapshots
		WHERE source_type = $1
		ORDER BY investor_id
	`, string(source))
	if err != nil {
		return nil, fmt.Errorf("query investors: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// load reads every snapshot of the series with period in [from, to]
func (s *PostgresStore) load(ctx context.Context, investorID string, source contracts.SourceType, from, to time.Time) ([]contracts.Snapshot, error) {
	headers, err := s.pool.Query(ctx, `
		SELECT period_date, filed_date
		FROM holdings.snapshots
		WHERE investor_id = $1 AND source_type = $2 AND period_date BETWEEN $3 AND $4
		ORDER BY period_date
	`, investorID, string(source), from, to)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}

	var snaps []contracts.Snapshot
	index := make(map[string]int)
	for headers.Next() {
		snap := contracts.Snapshot{InvestorID: investorID, SourceType: source}
		if err := headers.Scan(&snap.PeriodDate, &snap.FiledDate); err != nil {
			headers.Close()
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Disclosures = []contracts.NormalizedDisclosure{}
		index[periodKey(snap.PeriodDate)] = len(snaps)
		snaps = append(snaps, snap)
	}
	headers.Close()
	if err := headers.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT period_date, ticker, security_name, cusip, shares,
		       market_value::text, weight_pct, filed_date
		FROM holdings.disclosures
		WHERE investor_id = $1 AND source_type = $2 AND period_date BETWEEN $3 AND $4
		ORDER BY period_date, ticker
	`, investorID, string(source), from, to)
	if err != nil {
		return nil, fmt.Errorf("query disclosures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d := contracts.NormalizedDisclosure{InvestorID: investorID, SourceType: source}
		var value *string
		if err := rows.Scan(&d.PeriodDate, &d.Ticker, &d.SecurityName, &d.CUSIP, &d.Shares,
			&value, &d.WeightPct, &d.FiledDate); err != nil {
			return nil, fmt.Errorf("scan disclosure: %w", err)
		}
		if value != nil {
			v, err := decimal.NewFromString(*value)
			if err != nil {
				return nil, fmt.Errorf("market value of %s: %w", d.Ticker, err)
			}
			d.MarketValue = &v
		}

		i, ok := index[periodKey(d.PeriodDate)]
		if !ok {
			continue
		}
		snaps[i].Disclosures = append(snaps[i].Disclosures, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read disclosures: %w", err)
	}

	return snaps, nil
}

func periodKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func toNumeric(d *decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if d == nil {
		return n, nil
	}
	if err := n.Scan(d.String()); err != nil {
		return n, err
	}
	return n, nil
}
