package adapter

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// dollarValueCutoff: 13F filings filed before this date report value in thousands
var dollarValueCutoff = time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)

var thousand = decimal.NewFromInt(1000)

// Form13F parses 13F-HR information tables (XML, or the JSON entry list some mirrors serve)
type Form13F struct {
	Resolver CUSIPResolver
}

type informationTable struct {
	Entries []infoTableEntry `xml:"infoTable"`
}

type infoTableEntry struct {
	NameOfIssuer  string `xml:"nameOfIssuer"`
	TitleOfClass  string `xml:"titleOfClass"`
	CUSIP         string `xml:"cusip"`
	Value         string `xml:"value"`
	SshPrnamt     string `xml:"shrsOrPrnAmt>sshPrnamt"`
	SshPrnamtType string `xml:"shrsOrPrnAmt>sshPrnamtType"`
	PutCall       string `xml:"putCall"`
}

type jsonInfoTableEntry struct {
	NameOfIssuer  string      `json:"nameOfIssuer"`
	TitleOfClass  string      `json:"titleOfClass"`
	CUSIP         string      `json:"cusip"`
	Value         json.Number `json:"value"`
	SshPrnamt     json.Number `json:"sshPrnamt"`
	SshPrnamnt    json.Number `json:"sshPrnamnt"`
	SshPrnamtType string      `json:"sshPrnamtType"`
	SshPrntype    string      `json:"sshPrntype"`
	PutCall       string      `json:"putCall"`
}

// Parse decodes the information table and resolves CUSIPs to tickers.
// Option rows (put/call) and principal-amount rows (PRN) are skipped.
func (a *Form13F) Parse(raw RawSource) (*ParseResult, error) {
	entries, err := decode13F(raw.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrSourceRejected, raw.Name, err)
	}

	b := newBuilder(raw, contracts.Source13F)
	inThousands := !raw.FiledDate.IsZero() && raw.FiledDate.Before(dollarValueCutoff)

	for i, e := range entries {
		row := i + 1

		if strings.TrimSpace(e.PutCall) != "" {
			b.skip()
			continue
		}
		if t := strings.ToUpper(strings.TrimSpace(e.SshPrnamtType)); t != "" && t != "SH" {
			b.skip()
			continue
		}

		cusip := strings.ToUpper(strings.TrimSpace(e.CUSIP))
		if cusip == "" {
			b.reject(row, "ticker", "no cusip to resolve")
			continue
		}

		shares, err := parseShares(e.SshPrnamt)
		if err != nil {
			b.reject(row, "shares", err.Error())
			continue
		}

		value, err := parseMoney(e.Value)
		if err != nil {
			b.reject(row, "market_value", err.Error())
			continue
		}
		if value != nil && inThousands {
			scaled := value.Mul(thousand)
			value = &scaled
		}

		c := candidate{
			row:    row,
			name:   strings.TrimSpace(e.NameOfIssuer),
			cusip:  cusip,
			shares: shares,
			value:  value,
		}
		c.rawTicker, c.literal = resolveTicker(a.Resolver, cusip)
		b.add(c)
	}

	return b.build(), nil
}

// resolveTicker maps cusip to a ticker; unresolved CUSIPs stand in as their own ticker
func resolveTicker(r CUSIPResolver, cusip string) (string, bool) {
	if r != nil {
		if t, ok := r.Resolve(cusip); ok {
			return t, false
		}
	}
	return cusip, true
}

func decode13F(body []byte) ([]infoTableEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	switch trimmed[0] {
	case '<':
		var table informationTable
		if err := xml.Unmarshal(trimmed, &table); err != nil {
			return nil, fmt.Errorf("decode information table: %w", err)
		}
		return table.Entries, nil

	case '[', '{':
		var list []jsonInfoTableEntry
		if trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, fmt.Errorf("decode 13F entries: %w", err)
			}
		} else {
			var wrapped struct {
				InfoTable []jsonInfoTableEntry `json:"infoTable"`
			}
			if err := json.Unmarshal(trimmed, &wrapped); err != nil {
				return nil, fmt.Errorf("decode 13F entries: %w", err)
			}
			list = wrapped.InfoTable
		}

		out := make([]infoTableEntry, len(list))
		for i, e := range list {
			shares := e.SshPrnamt
			if shares == "" {
				shares = e.SshPrnamnt
			}
			kind := e.SshPrnamtType
			if kind == "" {
				kind = e.SshPrntype
			}
			out[i] = infoTableEntry{
				NameOfIssuer:  e.NameOfIssuer,
				TitleOfClass:  e.TitleOfClass,
				CUSIP:         e.CUSIP,
				Value:         e.Value.String(),
				SshPrnamt:     shares.String(),
				SshPrnamtType: kind,
				PutCall:       e.PutCall,
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("unrecognized document format")
}
