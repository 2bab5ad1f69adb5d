// Package edgar fetches 13F, N-PORT and Form 4 filings from SEC EDGAR.
package edgar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/config"
	"github.com/wonny/holdwatch/backend/pkg/httputil"
	"github.com/wonny/holdwatch/backend/pkg/logger"
	"github.com/wonny/holdwatch/backend/pkg/redis"
)

// ErrNoFiling is returned when a filer has no filing of the requested form
var ErrNoFiling = errors.New("no matching filing")

// EDGAR form types per disclosure source
var forms = map[contracts.SourceType]string{
	contracts.Source13F:   "13F-HR",
	contracts.SourceNPort: "NPORT-P",
	contracts.SourceForm4: "4",
}

// FormFor returns the EDGAR form type for a source
func FormFor(source contracts.SourceType) (string, error) {
	form, ok := forms[source]
	if !ok {
		return "", fmt.Errorf("%w: %s is not an EDGAR source", contracts.ErrUnknownSourceType, source)
	}
	return form, nil
}

// Client handles communication with SEC EDGAR
// ⭐ SSOT: EDGAR 호출은 이 클라이언트에서만
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	dataURL     string
	archivesURL string
}

// NewClient creates a new EDGAR client.
// SEC fair-access rules: declared User-Agent and a bounded request rate.
func NewClient(httpClient *httputil.Client, cfg config.EDGARConfig, log *logger.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 8
	}
	httpClient = httpClient.
		WithHeader("User-Agent", cfg.UserAgent).
		WithHeader("Accept-Encoding", "identity").
		WithLocalLimit(rps)

	return &Client{
		httpClient:  httpClient,
		logger:      log.Module("edgar"),
		dataURL:     strings.TrimRight(cfg.DataURL, "/"),
		archivesURL: strings.TrimRight(cfg.ArchivesURL, "/"),
	}
}

// WithSharedLimit bounds requests across processes through Redis
func (c *Client) WithSharedLimit(limiter *redis.RateLimiter, rps int) *Client {
	c.httpClient = c.httpClient.WithRateLimiter(limiter, redis.RateLimitConfig{
		Key:    "edgar",
		Limit:  rps,
		Window: time.Second,
	})
	return c
}

// Filing is one entry of a filer's submission history
type Filing struct {
	CIK             string
	FilerName       string
	AccessionNumber string
	Form            string
	PrimaryDocument string
	FilingDate      time.Time
	ReportDate      time.Time
}

// Document is a downloaded filing document
type Document struct {
	Filing Filing
	URL    string
	Body   []byte
}

type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// Filings returns the filer's recent filings of form, newest first
func (c *Client) Filings(ctx context.Context, cik, form string) ([]Filing, error) {
	padded, err := padCIK(cik)
	if err != nil {
		return nil, err
	}

	var resp submissionsResponse
	u := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, padded)
	if err := c.httpClient.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fetch submissions %s: %w", cik, err)
	}

	recent := resp.Filings.Recent
	var filings []Filing
	for i := range recent.AccessionNumber {
		if at(recent.Form, i) != form {
			continue
		}
		filed, err := time.Parse("2006-01-02", at(recent.FilingDate, i))
		if err != nil {
			c.logger.WithField("accession", recent.AccessionNumber[i]).Warn("Skipping filing without filing date")
			continue
		}
		report, _ := time.Parse("2006-01-02", at(recent.ReportDate, i))

		filings = append(filings, Filing{
			CIK:             strings.TrimLeft(padded, "0"),
			FilerName:       resp.Name,
			AccessionNumber: recent.AccessionNumber[i],
			Form:            form,
			PrimaryDocument: at(recent.PrimaryDocument, i),
			FilingDate:      filed,
			ReportDate:      report,
		})
	}

	sort.SliceStable(filings, func(i, j int) bool {
		return filings[i].FilingDate.After(filings[j].FilingDate)
	})
	return filings, nil
}

// LatestFiling returns the newest filing of form
func (c *Client) LatestFiling(ctx context.Context, cik, form string) (*Filing, error) {
	filings, err := c.Filings(ctx, cik, form)
	if err != nil {
		return nil, err
	}
	if len(filings) == 0 {
		return nil, fmt.Errorf("%w: cik %s form %s", ErrNoFiling, cik, form)
	}
	return &filings[0], nil
}

// FolderURL returns the archive folder of a filing
func (c *Client) FolderURL(f Filing) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s",
		c.archivesURL, f.CIK, strings.ReplaceAll(f.AccessionNumber, "-", ""))
}

// IndexURL returns the human-readable filing index page
func (c *Client) IndexURL(f Filing) string {
	return fmt.Sprintf("%s/%s-index.htm", c.FolderURL(f), f.AccessionNumber)
}

// FetchLatest downloads the holdings document of the newest filing for source
func (c *Client) FetchLatest(ctx context.Context, cik string, source contracts.SourceType) (*Document, error) {
	form, err := FormFor(source)
	if err != nil {
		return nil, err
	}

	filing, err := c.LatestFiling(ctx, cik, form)
	if err != nil {
		return nil, err
	}

	docURL, err := c.DocumentURL(ctx, *filing)
	if err != nil {
		return nil, err
	}

	body, err := c.httpClient.GetBody(ctx, docURL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", docURL, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"cik":       filing.CIK,
		"form":      filing.Form,
		"accession": filing.AccessionNumber,
		"filed":     filing.FilingDate.Format("2006-01-02"),
		"bytes":     len(body),
	}).Info("Downloaded filing document")

	return &Document{Filing: *filing, URL: docURL, Body: body}, nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// padCIK left-pads a CIK to the 10 digits the submissions API expects
func padCIK(cik string) (string, error) {
	cik = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(cik), "CIK"))
	if cik == "" || len(cik) > 10 {
		return "", fmt.Errorf("invalid cik %q", cik)
	}
	for _, r := range cik {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid cik %q", cik)
		}
	}
	return strings.Repeat("0", 10-len(cik)) + cik, nil
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	h, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(h).String(), nil
}
