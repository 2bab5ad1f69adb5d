// Package quotes fetches daily close prices used to price holding changes.
package quotes

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/httputil"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// Client reads the chart endpoint of a Yahoo-compatible quote service
// ⭐ SSOT: 종가 조회는 여기서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new quotes client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient.WithHeader("User-Agent", "Mozilla/5.0"),
		logger:     log.Module("quotes"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchCloses returns daily closes for ticker with from <= date <= to
func (c *Client) FetchCloses(ctx context.Context, ticker string, from, to time.Time) ([]contracts.DailyClose, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", contracts.DateOnly(from).Unix()))
	params.Set("period2", fmt.Sprintf("%d", contracts.DateOnly(to).AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(yahooSymbol(ticker)), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fetch chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s: %s", ticker, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	return parseChart(ticker, resp, from, to), nil
}

func parseChart(ticker string, resp chartResponse, from, to time.Time) []contracts.DailyClose {
	span := contracts.DateRange{Start: contracts.DateOnly(from), End: contracts.DateOnly(to)}

	var closes []contracts.DailyClose
	for _, result := range resp.Chart.Result {
		if len(result.Indicators.Quote) == 0 {
			continue
		}
		values := result.Indicators.Quote[0].Close
		for i, ts := range result.Timestamp {
			if i >= len(values) || values[i] == nil {
				continue // 거래 정지일
			}
			date := contracts.DateOnly(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
			if !span.Contains(date) {
				continue
			}
			closes = append(closes, contracts.DailyClose{
				Ticker: ticker,
				Date:   date,
				Close:  *values[i],
			})
		}
	}
	return closes
}

// share class tickers use a dash on the quote service (BRK.B → BRK-B)
func yahooSymbol(ticker string) string {
	return strings.ReplaceAll(ticker, ".", "-")
}
