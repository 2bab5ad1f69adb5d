package adapter

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// NPort parses N-PORT-P primary documents
type NPort struct {
	Resolver CUSIPResolver
}

type nportSubmission struct {
	FormData struct {
		GenInfo struct {
			SeriesName string `xml:"seriesName"`
			SeriesID   string `xml:"seriesId"`
			RepPdDate  string `xml:"repPdDate"`
		} `xml:"genInfo"`
		InvstOrSecs struct {
			Invst []invstOrSec `xml:"invstOrSec"`
		} `xml:"invstOrSecs"`
	} `xml:"formData"`
}

type invstOrSec struct {
	Name        string `xml:"name"`
	Title       string `xml:"title"`
	CUSIP       string `xml:"cusip"`
	Identifiers struct {
		Ticker struct {
			Value string `xml:"value,attr"`
		} `xml:"ticker"`
	} `xml:"identifiers"`
	Balance string `xml:"balance"`
	Units   string `xml:"units"`
	ValUSD  string `xml:"valUSD"`
	PctVal  string `xml:"pctVal"`
}

// Parse reads every share-denominated holding (units NS); the report
// period comes from genInfo/repPdDate.
func (a *NPort) Parse(raw RawSource) (*ParseResult, error) {
	var sub nportSubmission
	if err := xml.Unmarshal(raw.Body, &sub); err != nil {
		return nil, fmt.Errorf("%w: %s: decode N-PORT: %v", contracts.ErrSourceRejected, raw.Name, err)
	}

	b := newBuilder(raw, contracts.SourceNPort)

	period := raw.PeriodDate
	if s := strings.TrimSpace(sub.FormData.GenInfo.RepPdDate); s != "" {
		p, err := parseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: repPdDate: %v", contracts.ErrSourceRejected, raw.Name, err)
		}
		period = p
	}

	for i, sec := range sub.FormData.InvstOrSecs.Invst {
		row := i + 1

		if u := strings.ToUpper(strings.TrimSpace(sec.Units)); u != "" && u != "NS" {
			b.skip()
			continue
		}

		shares, err := parseShares(sec.Balance)
		if err != nil {
			b.reject(row, "shares", err.Error())
			continue
		}
		value, err := parseMoney(sec.ValUSD)
		if err != nil {
			b.reject(row, "market_value", err.Error())
			continue
		}
		weight, err := parseWeight(sec.PctVal)
		if err != nil {
			b.reject(row, "weight_pct", err.Error())
			continue
		}

		cusip := strings.ToUpper(strings.TrimSpace(sec.CUSIP))
		if cusip == "N/A" || cusip == "000000000" {
			cusip = ""
		}

		c := candidate{
			row:    row,
			period: period,
			name:   strings.TrimSpace(sec.Name),
			cusip:  cusip,
			shares: shares,
			value:  value,
			weight: weight,
		}

		switch t := strings.TrimSpace(sec.Identifiers.Ticker.Value); {
		case t != "":
			c.rawTicker = t
		case cusip != "":
			c.rawTicker, c.literal = resolveTicker(a.Resolver, cusip)
		}

		b.add(c)
	}

	return b.build(), nil
}
