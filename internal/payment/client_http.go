package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"quorum/pkg/platform/sentinel"
)

// HTTPClient checks settlement status against the payments platform. Calls
// are bounded by the configured timeout so a provider outage stalls one
// activation, not the worker handling it.
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

func (c *HTTPClient) Check(ctx context.Context, paymentRef string) (Confirmation, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s/status", c.baseURL, url.PathEscape(paymentRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Confirmation{}, fmt.Errorf("build payment request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("payment check: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var conf Confirmation
		if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
			return Confirmation{}, fmt.Errorf("decode payment response: %w", err)
		}
		return conf, nil
	case http.StatusNotFound:
		return Confirmation{}, sentinel.ErrNotFound
	default:
		return Confirmation{}, fmt.Errorf("payment check: %w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
}
