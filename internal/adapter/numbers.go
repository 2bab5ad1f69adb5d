package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// cleanNumber strips currency/percent decoration; "(1,234)" becomes "-1234"
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.NewReplacer("$", "", ",", "", "%", "", "(", "", ")", "", " ", "").Replace(s)
	if neg && s != "" {
		s = "-" + s
	}
	return s
}

// parseShares parses an integer share count. "1,000.00" is accepted, "10.5" is not.
func parseShares(s string) (int64, error) {
	c := cleanNumber(s)
	if c == "" {
		return 0, fmt.Errorf("missing")
	}
	d, err := decimal.NewFromString(c)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("fractional shares: %q", s)
	}
	return d.IntPart(), nil
}

// parseMoney parses an optional dollar amount; empty → nil
func parseMoney(s string) (*decimal.Decimal, error) {
	c := cleanNumber(s)
	if c == "" || c == "-" {
		return nil, nil
	}
	d, err := decimal.NewFromString(c)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return &d, nil
}

// parseWeight parses an optional percentage; empty → nil
func parseWeight(s string) (*float64, error) {
	d, err := parseMoney(s)
	if err != nil || d == nil {
		return nil, err
	}
	f := d.InexactFloat64()
	return &f, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"20060102",
	"02-Jan-2006",
	"Jan 2, 2006",
	"01-02-2006",
	time.RFC3339,
}

// parseDate tries the date layouts issuers actually use
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}
