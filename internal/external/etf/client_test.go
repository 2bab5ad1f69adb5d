package etf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/holdwatch/backend/pkg/config"
	"github.com/wonny/holdwatch/backend/pkg/httputil"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

func newClient() *Client {
	return NewClient(httputil.New(&config.Config{Env: "development"}, logger.Nop()).DisableRetry(), logger.Nop())
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		switch r.URL.Path {
		case "/ok.csv":
			fmt.Fprint(w, "date,fund,ticker,shares\n")
		case "/blocked.csv":
			fmt.Fprint(w, "<!DOCTYPE html><html><body>Access denied</body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newClient()
	ctx := context.Background()

	body, err := c.Download(ctx, srv.URL+"/ok.csv")
	require.NoError(t, err)
	assert.Equal(t, "date,fund,ticker,shares\n", string(body))

	_, err = c.Download(ctx, srv.URL+"/blocked.csv")
	assert.ErrorContains(t, err, "html page")

	_, err = c.Download(ctx, srv.URL+"/missing.csv")
	var statusErr *httputil.StatusError
	assert.ErrorAs(t, err, &statusErr)

	_, err = c.Download(ctx, " ")
	assert.Error(t, err)
}
