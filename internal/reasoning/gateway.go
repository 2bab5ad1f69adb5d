// Package reasoning hands ranked changes to an external narrative service.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/wonny/holdwatch/backend/internal/contracts"
	"github.com/wonny/holdwatch/backend/pkg/httputil"
	"github.com/wonny/holdwatch/backend/pkg/logger"
)

// HTTPGateway POSTs change records as JSON and reads back narratives
// ⭐ SSOT: 내러티브 서비스 호출은 여기서만
type HTTPGateway struct {
	httpClient *httputil.Client
	url        string
	logger     *logger.Logger
}

// NewHTTPGateway creates a gateway. apiKey is sent as a bearer token when set.
func NewHTTPGateway(httpClient *httputil.Client, url, apiKey string, log *logger.Logger) *HTTPGateway {
	if apiKey != "" {
		httpClient = httpClient.WithHeader("Authorization", "Bearer "+apiKey)
	}
	return &HTTPGateway{
		httpClient: httpClient,
		url:        url,
		logger:     log.Module("reasoning"),
	}
}

var _ contracts.ReasoningGateway = (*HTTPGateway)(nil)

type explainRequest struct {
	Changes []contracts.ChangeRecord `json:"changes"`
}

type explainResponse struct {
	Narratives []contracts.Narrative `json:"narratives"`
}

// Explain sends records and returns one narrative per record the service chose to explain
func (g *HTTPGateway) Explain(ctx context.Context, records []contracts.ChangeRecord) ([]contracts.Narrative, error) {
	if len(records) == 0 {
		return nil, nil
	}

	resp, err := g.httpClient.PostJSON(ctx, g.url, explainRequest{Changes: records})
	if err != nil {
		return nil, fmt.Errorf("reasoning request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httputil.StatusError{URL: g.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reasoning response: %w", err)
	}

	var out explainResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode reasoning response: %w", err)
	}

	g.logger.WithFields(map[string]interface{}{
		"records":    len(records),
		"narratives": len(out.Narratives),
	}).Debug("Received narratives")
	return out.Narratives, nil
}

// NoopGateway returns no narratives
type NoopGateway struct{}

var _ contracts.ReasoningGateway = NoopGateway{}

// Explain returns nil
func (NoopGateway) Explain(ctx context.Context, records []contracts.ChangeRecord) ([]contracts.Narrative, error) {
	return nil, nil
}
