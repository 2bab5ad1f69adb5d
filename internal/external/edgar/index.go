package edgar

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IndexEntry is one row of a filing index "Document Format Files" table
type IndexEntry struct {
	Seq         string
	Description string
	Document    string
	Href        string
	Type        string
}

// DocumentURL locates the machine-readable holdings document of a filing
func (c *Client) DocumentURL(ctx context.Context, f Filing) (string, error) {
	indexURL := c.IndexURL(f)
	body, err := c.httpClient.GetBody(ctx, indexURL)
	if err != nil {
		return "", fmt.Errorf("fetch filing index %s: %w", f.AccessionNumber, err)
	}

	entries, err := ParseIndex(body)
	if err != nil {
		return "", fmt.Errorf("parse filing index %s: %w", f.AccessionNumber, err)
	}

	entry, ok := pickDocument(entries, f.Form)
	if !ok {
		// 인덱스에 XML이 없으면 primaryDocument로 대체
		if f.PrimaryDocument == "" || !strings.HasSuffix(strings.ToLower(f.PrimaryDocument), ".xml") {
			return "", fmt.Errorf("%w: no xml document in %s", ErrNoFiling, f.AccessionNumber)
		}
		return c.FolderURL(f) + "/" + f.PrimaryDocument, nil
	}

	return resolve(indexURL, entry.Href)
}

// ParseIndex reads the document table of a filing index page
func ParseIndex(body []byte) ([]IndexEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var entries []IndexEntry
	doc.Find("table.tableFile tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return // header
		}
		link := cells.Eq(2).Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		entries = append(entries, IndexEntry{
			Seq:         strings.TrimSpace(cells.Eq(0).Text()),
			Description: strings.TrimSpace(cells.Eq(1).Text()),
			Document:    strings.TrimSpace(link.Text()),
			Href:        href,
			Type:        strings.TrimSpace(cells.Eq(3).Text()),
		})
	})

	return entries, nil
}

// pickDocument chooses the raw XML entry for form.
// Rendered copies live under xsl* folders and are skipped.
func pickDocument(entries []IndexEntry, form string) (IndexEntry, bool) {
	want := func(e IndexEntry) bool {
		switch form {
		case "13F-HR":
			return strings.EqualFold(e.Type, "INFORMATION TABLE")
		default:
			return strings.EqualFold(e.Type, form)
		}
	}

	for _, e := range entries {
		lower := strings.ToLower(e.Href)
		if !strings.HasSuffix(lower, ".xml") || strings.Contains(lower, "/xsl") {
			continue
		}
		if want(e) {
			return e, true
		}
	}
	return IndexEntry{}, false
}
