package geography

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"quorum/pkg/platform/sentinel"
)

// HTTPClient resolves references against the external geography service.
// Every call is bounded by the configured timeout; the orchestrator treats
// an expiry as a retryable validation outage, never as a rejection.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Resolve(ctx context.Context, ref string) (Node, error) {
	endpoint := fmt.Sprintf("%s/v1/geography/resolve?ref=%s", c.baseURL, url.QueryEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Node{}, fmt.Errorf("build geography request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Node{}, fmt.Errorf("geography lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var node Node
		if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
			return Node{}, fmt.Errorf("decode geography response: %w", err)
		}
		return node, nil
	case http.StatusNotFound:
		return Node{}, sentinel.ErrNotFound
	default:
		return Node{}, fmt.Errorf("geography lookup: %w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
}
