// Package etf downloads daily holdings files published by ETF issuers.
package etf

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/holdwatch/backend/pkg/httputil"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// Client downloads issuer holdings CSVs
// ⭐ SSOT: ETF 발행사 보유종목 다운로드는 여기서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewClient creates a new ETF issuer client.
// Some issuers reject requests without a browser User-Agent.
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient.
			WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36").
			WithHeader("Accept", "text/csv,application/octet-stream,*/*"),
		logger: log.Module("etf"),
	}
}

// Download fetches the holdings file at csvURL
func (c *Client) Download(ctx context.Context, csvURL string) ([]byte, error) {
	if strings.TrimSpace(csvURL) == "" {
		return nil, fmt.Errorf("empty holdings url")
	}

	body, err := c.httpClient.GetBody(ctx, csvURL)
	if err != nil {
		return nil, fmt.Errorf("download holdings %s: %w", csvURL, err)
	}
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("download holdings %s: got an html page instead of csv", csvURL)
	}

	c.logger.WithFields(map[string]interface{}{
		"url":   csvURL,
		"bytes": len(body),
	}).Debug("Downloaded holdings file")
	return body, nil
}

// 발행사 차단 페이지는 200 + HTML로 응답하는 경우가 있음
func looksLikeHTML(body []byte) bool {
	n := len(body)
	if n > 512 {
		n = 512
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:n])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
