package adapter

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
)

// Form4 parses insider ownership documents: one row per issuer holding
// sharesOwnedFollowingTransaction of the latest non-derivative transaction.
// A document covers one issuer, so rows land in the (owner, issuer) series
// "owner:issuerCIK" and never stand in for the owner's whole portfolio.
type Form4 struct{}

type valueField struct {
	Value string `xml:"value"`
}

type ownershipDocument struct {
	PeriodOfReport string `xml:"periodOfReport"`
	Issuer         struct {
		CIK           string `xml:"issuerCik"`
		Name          string `xml:"issuerName"`
		TradingSymbol string `xml:"issuerTradingSymbol"`
	} `xml:"issuer"`
	ReportingOwner struct {
		CIK  string `xml:"reportingOwnerId>rptOwnerCik"`
		Name string `xml:"reportingOwnerId>rptOwnerName"`
	} `xml:"reportingOwner"`
	NonDerivative struct {
		Transactions []form4Entry `xml:"nonDerivativeTransaction"`
		Holdings     []form4Entry `xml:"nonDerivativeHolding"`
	} `xml:"nonDerivativeTable"`
}

type form4Entry struct {
	SecurityTitle   valueField `xml:"securityTitle"`
	TransactionDate valueField `xml:"transactionDate"`
	SharesAfter     valueField `xml:"postTransactionAmounts>sharesOwnedFollowingTransaction"`
}

// Parse reads a single ownershipDocument
func (a *Form4) Parse(raw RawSource) (*ParseResult, error) {
	var doc ownershipDocument
	if err := xml.Unmarshal(raw.Body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: decode Form 4: %v", contracts.ErrSourceRejected, raw.Name, err)
	}

	b := newBuilder(raw, contracts.SourceForm4)

	entries := doc.NonDerivative.Transactions
	if len(entries) == 0 {
		entries = doc.NonDerivative.Holdings
	}
	if len(entries) == 0 {
		b.skip()
		return b.build(), nil
	}

	c := candidate{
		row:       1,
		rawTicker: strings.TrimSpace(doc.Issuer.TradingSymbol),
		name:      strings.TrimSpace(doc.Issuer.Name),
	}
	owner := raw.InvestorID
	if owner == "" {
		owner = strings.TrimSpace(doc.ReportingOwner.CIK)
	}
	if owner == "" {
		b.reject(1, "investor_id", "missing")
		return b.build(), nil
	}
	issuer := issuerKey(doc.Issuer.CIK, c.rawTicker)
	if issuer == "" {
		b.reject(1, "ticker", "missing issuer")
		return b.build(), nil
	}
	c.investorID = contracts.IssuerSeriesID(owner, issuer)
	if s := strings.TrimSpace(doc.PeriodOfReport); s != "" {
		p, err := parseDate(s)
		if err != nil {
			b.reject(1, "period_date", err.Error())
			return b.build(), nil
		}
		c.period = p
	}

	latest, err := latestEntry(entries)
	if err != nil {
		b.reject(1, "period_date", err.Error())
		return b.build(), nil
	}

	shares, err := parseShares(latest.SharesAfter.Value)
	if err != nil {
		b.reject(1, "shares", err.Error())
		return b.build(), nil
	}
	c.shares = shares

	b.add(c)
	return b.build(), nil
}

// issuerKey identifies the issuer by CIK without zero padding, falling back to its symbol
func issuerKey(cik, symbol string) string {
	if k := strings.TrimLeft(strings.TrimSpace(cik), "0"); k != "" {
		return k
	}
	base, class := NormalizeTicker(symbol)
	return ClassTicker(base, class)
}

// latestEntry picks the entry with the latest transaction date; ties keep document order
func latestEntry(entries []form4Entry) (form4Entry, error) {
	best := entries[0]
	var bestDate time.Time

	for _, e := range entries {
		var d time.Time
		if s := strings.TrimSpace(e.TransactionDate.Value); s != "" {
			parsed, err := parseDate(s)
			if err != nil {
				return form4Entry{}, fmt.Errorf("transactionDate: %w", err)
			}
			d = parsed
		}
		if !d.Before(bestDate) {
			best, bestDate = e, d
		}
	}
	return best, nil
}
