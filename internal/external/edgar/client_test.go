package edgar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/config"
	"github.com/wonny/holdwatch/backend/pkg/httputil"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

const submissionsJSON = `{
  "cik": "1067983",
  "name": "BERKSHIRE HATHAWAY INC",
  "filings": {"recent": {
    "accessionNumber": ["0000950123-24-005000", "0000950123-24-002000", "0000950123-23-011000"],
    "filingDate":      ["2024-05-15", "2024-02-14", "2023-11-14"],
    "reportDate":      ["2024-03-31", "2023-12-31", "2023-09-30"],
    "form":            ["4", "13F-HR", "13F-HR"],
    "primaryDocument": ["xslF345X05/doc4.xml", "primary_doc.xml", "primary_doc.xml"]
  }}
}`

const indexHTML = `<html><body>
<table class="tableFile" summary="Document Format Files">
<tr><th>Seq</th><th>Description</th><th>Document</th><th>Type</th><th>Size</th></tr>
<tr><td>1</td><td></td><td><a href="/Archives/edgar/data/1067983/000095012324002000/xslForm13F_X02/primary_doc.xml">primary_doc.html</a></td><td>13F-HR</td><td>4 KB</td></tr>
<tr><td>2</td><td>INFORMATION TABLE</td><td><a href="/Archives/edgar/data/1067983/000095012324002000/xslForm13F_X02/infotable.xml">infotable.html</a></td><td>INFORMATION TABLE</td><td>40 KB</td></tr>
<tr><td>3</td><td>INFORMATION TABLE</td><td><a href="/Archives/edgar/data/1067983/000095012324002000/infotable.xml">infotable.xml</a></td><td>INFORMATION TABLE</td><td>40 KB</td></tr>
</table></body></html>`

func newTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/submissions/CIK0001067983.json", func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "holdwatch test@example.com", r.Header.Get("User-Agent"))
		fmt.Fprint(w, submissionsJSON)
	})
	mux.HandleFunc("/Archives/edgar/data/1067983/000095012324002000/0000950123-24-002000-index.htm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, indexHTML)
	})
	mux.HandleFunc("/Archives/edgar/data/1067983/000095012324002000/infotable.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<informationTable/>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(srv *httptest.Server) *Client {
	cfg := &config.Config{Env: "development"}
	return NewClient(httputil.New(cfg, logger.Nop()).DisableRetry(), config.EDGARConfig{
		UserAgent:         "holdwatch test@example.com",
		DataURL:           srv.URL,
		ArchivesURL:       srv.URL,
		RequestsPerSecond: 100,
	}, logger.Nop())
}

func TestFilings_FiltersAndOrders(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	filings, err := c.Filings(context.Background(), "1067983", "13F-HR")
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Equal(t, "0000950123-24-002000", filings[0].AccessionNumber)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), filings[0].ReportDate)
	assert.Equal(t, "BERKSHIRE HATHAWAY INC", filings[0].FilerName)
}

func TestLatestFiling_None(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	_, err := c.LatestFiling(context.Background(), "1067983", "NPORT-P")
	assert.True(t, errors.Is(err, ErrNoFiling))
}

func TestFetchLatest_13F(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	doc, err := c.FetchLatest(context.Background(), "0001067983", contracts.Source13F)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/Archives/edgar/data/1067983/000095012324002000/infotable.xml", doc.URL)
	assert.Equal(t, "<informationTable/>", string(doc.Body))
	assert.Equal(t, "0000950123-24-002000", doc.Filing.AccessionNumber)
}

func TestFormFor(t *testing.T) {
	form, err := FormFor(contracts.SourceNPort)
	require.NoError(t, err)
	assert.Equal(t, "NPORT-P", form)

	_, err = FormFor(contracts.SourceDailyETF)
	assert.True(t, errors.Is(err, contracts.ErrUnknownSourceType))
}

func TestPadCIK(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1067983", "0001067983", false},
		{"CIK0001067983", "0001067983", false},
		{"", "", true},
		{"12a", "", true},
		{"12345678901", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := padCIK(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIndex_SkipsRenderedCopies(t *testing.T) {
	entries, err := ParseIndex([]byte(indexHTML))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	e, ok := pickDocument(entries, "13F-HR")
	require.True(t, ok)
	assert.Equal(t, "infotable.xml", e.Document)

	_, ok = pickDocument(entries, "4")
	assert.False(t, ok)
}
