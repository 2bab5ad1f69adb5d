package changes

import (
	"context"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/redis"
)

// Cache keeps computed views in Redis (msgpack) keyed by their snapshot pair
type Cache struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewCache creates a view cache. A disabled client turns every call into a no-op.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &Cache{cache: redis.NewCache(client, "holdwatch"), ttl: ttl}
}

func viewKey(view contracts.ChangeView) string {
	if view.Window != nil {
		return redis.WindowViewKey(view.InvestorID, string(view.SourceType),
			view.Window.Start.Format("2006-01-02"), view.Window.End.Format("2006-01-02"))
	}
	return pairKey(view.InvestorID, view.SourceType, view.PreviousPeriod, view.CurrentPeriod)
}

func pairKey(investorID string, source contracts.SourceType, prev *time.Time, curr time.Time) string {
	prevPeriod := ""
	if prev != nil {
		prevPeriod = prev.Format("2006-01-02")
	}
	return redis.ChangeViewKey(investorID, string(source), prevPeriod, curr.Format("2006-01-02"))
}

// Put stores view under its snapshot pair
func (c *Cache) Put(ctx context.Context, view contracts.ChangeView) error {
	return c.cache.Set(ctx, viewKey(view), view, c.ttl)
}

// Get returns the cached view for a snapshot pair
func (c *Cache) Get(ctx context.Context, investorID string, source contracts.SourceType, prev *time.Time, curr time.Time) (*contracts.ChangeView, bool, error) {
	return c.get(ctx, pairKey(investorID, source, prev, curr))
}

// GetWindow returns the cached rolling-window view
func (c *Cache) GetWindow(ctx context.Context, investorID string, source contracts.SourceType, window contracts.DateRange) (*contracts.ChangeView, bool, error) {
	return c.get(ctx, viewKey(contracts.ChangeView{InvestorID: investorID, SourceType: source, Window: &window}))
}

func (c *Cache) get(ctx context.Context, key string) (*contracts.ChangeView, bool, error) {
	var view contracts.ChangeView
	ok, err := c.cache.Get(ctx, key, &view)
	if err != nil || !ok {
		return nil, false, err
	}
	utcView(&view)
	return &view, true, nil
}

// utcView restores UTC on decoded times; msgpack decodes timestamps in the local zone
func utcView(view *contracts.ChangeView) {
	if view.PreviousPeriod != nil {
		prev := view.PreviousPeriod.UTC()
		view.PreviousPeriod = &prev
	}
	view.CurrentPeriod = view.CurrentPeriod.UTC()
	view.ComputedAt = view.ComputedAt.UTC()
	if view.Window != nil {
		w := utcRange(*view.Window)
		view.Window = &w
	}
	for _, side := range [][]contracts.RankedChange{view.Buys, view.Sells} {
		for i := range side {
			side[i].Change.DateRange = utcRange(side[i].Change.DateRange)
		}
	}
}

func utcRange(r contracts.DateRange) contracts.DateRange {
	return contracts.DateRange{Start: r.Start.UTC(), End: r.End.UTC()}
}
