package adapter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// etfColumns maps canonical columns to the header spellings issuers use
var etfColumns = map[string][]string{
	"date":    {"date", "as of date", "as_of_date", "asofdate", "holdings date"},
	"fund":    {"fund", "fund ticker", "fund_ticker", "account"},
	"ticker":  {"ticker", "symbol", "ticker symbol", "stock ticker"},
	"cusip":   {"cusip"},
	"company": {"company", "name", "security name", "security", "holding", "description"},
	"shares":  {"shares", "quantity", "shares held", "shares/par"},
	"value":   {"market value ($)", "market value", "market_value", "marketvalue", "market value($)", "notional value"},
	"weight":  {"weight (%)", "weight", "weight(%)", "% of net assets", "portfolio weight", "weightings"},
}

// ETFCSV parses daily ETF holdings exports (ARK-style and similar issuer CSVs)
type ETFCSV struct{}

// Parse reads the CSV: lines before the header are ignored, footer
// disclaimer lines (a single populated cell) are skipped.
func (a *ETFCSV) Parse(raw RawSource) (*ParseResult, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw.Body, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	b := newBuilder(raw, contracts.SourceDailyETF)

	var cols map[string]int
	dataRow := 0

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if cols != nil {
				dataRow++
				b.reject(dataRow, "row", err.Error())
			}
			continue
		}

		if cols == nil {
			cols = etfHeader(record)
			continue
		}

		if populated(record) <= 1 {
			if populated(record) == 1 {
				b.skip()
			}
			continue
		}

		dataRow++
		a.parseRow(b, cols, record, dataRow)
	}

	if cols == nil {
		return nil, fmt.Errorf("%w: %s: no header with ticker and shares columns", contracts.ErrSourceRejected, raw.Name)
	}

	return b.build(), nil
}

func (a *ETFCSV) parseRow(b *builder, cols map[string]int, record []string, row int) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	c := candidate{
		row:        row,
		investorID: b.raw.InvestorID,
		rawTicker:  get("ticker"),
		name:       get("company"),
		cusip:      strings.ToUpper(get("cusip")),
	}
	if c.investorID == "" {
		c.investorID = strings.ToLower(get("fund"))
	}

	if s := get("date"); s != "" {
		period, err := parseDate(s)
		if err != nil {
			b.reject(row, "period_date", err.Error())
			return
		}
		c.period = period
	}

	shares, err := parseShares(get("shares"))
	if err != nil {
		b.reject(row, "shares", err.Error())
		return
	}
	c.shares = shares

	if c.value, err = parseMoney(get("value")); err != nil {
		b.reject(row, "market_value", err.Error())
		return
	}
	if c.weight, err = parseWeight(get("weight")); err != nil {
		b.reject(row, "weight_pct", err.Error())
		return
	}

	b.add(c)
}

// etfHeader returns the column index map if record is a usable header row
func etfHeader(record []string) map[string]int {
	cols := make(map[string]int)
	for i, cell := range record {
		h := strings.ToLower(strings.Join(strings.Fields(cell), " "))
		for name, aliases := range etfColumns {
			if _, done := cols[name]; done {
				continue
			}
			for _, alias := range aliases {
				if h == alias {
					cols[name] = i
					break
				}
			}
		}
	}

	_, hasTicker := cols["ticker"]
	_, hasShares := cols["shares"]
	if !hasTicker || !hasShares {
		return nil
	}
	return cols
}

func populated(record []string) int {
	n := 0
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
