// Package pricing enriches holding changes with the close-price range over
// their date span and the resulting estimated dollar value.
package pricing

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// PriceBook answers "what did this ticker close at over this span"
type PriceBook interface {
	Range(ticker string, span contracts.DateRange) (contracts.PriceRange, bool)
}

// Book is an in-memory PriceBook over daily closes
type Book struct {
	closes map[string][]contracts.DailyClose // ordered by date
}

// NewBook indexes closes by ticker
func NewBook(closes []contracts.DailyClose) *Book {
	b := &Book{closes: make(map[string][]contracts.DailyClose)}
	for _, c := range closes {
		c.Date = contracts.DateOnly(c.Date)
		b.closes[c.Ticker] = append(b.closes[c.Ticker], c)
	}
	for _, list := range b.closes {
		sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	}
	return b
}

// Range returns [min close, max close] for closes inside span
func (b *Book) Range(ticker string, span contracts.DateRange) (contracts.PriceRange, bool) {
	list := b.closes[ticker]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Date.Before(span.Start) })

	var r contracts.PriceRange
	found := false
	for ; i < len(list) && !list[i].Date.After(span.End); i++ {
		c := list[i].Close
		if !found {
			r = contracts.PriceRange{Low: c, High: c}
			found = true
			continue
		}
		if c < r.Low {
			r.Low = c
		}
		if c > r.High {
			r.High = c
		}
	}
	return r, found
}

// Apply returns copies of changes with PriceRange and
// EstimatedValue = |shares_delta| × midpoint set where the book has prices.
// Changes without prices keep nil fields.
func Apply(changes []contracts.HoldingChange, book PriceBook) []contracts.HoldingChange {
	out := make([]contracts.HoldingChange, len(changes))
	for i, c := range changes {
		out[i] = c
		if book == nil {
			continue
		}
		r, ok := book.Range(c.Ticker, c.DateRange)
		if !ok {
			continue
		}
		value := float64(c.AbsDelta()) * r.Midpoint()
		out[i].PriceRange = &r
		out[i].EstimatedValue = &value
	}
	return out
}

// LoadBook reads the closes needed to price changes
func LoadBook(ctx context.Context, repo contracts.PriceRepository, changes []contracts.HoldingChange) (*Book, error) {
	if len(changes) == 0 {
		return NewBook(nil), nil
	}

	tickers, span := Tickers(changes)
	sort.Strings(tickers)
	from, to := span.Start, span.End

	closes, err := repo.GetCloses(ctx, tickers, from, to)
	if err != nil {
		return nil, fmt.Errorf("load closes %s~%s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	return NewBook(closes), nil
}
