package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// MetricsClient posts aggregated metrics payloads to the events endpoint.
type MetricsClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewMetricsClient builds a client for the given events base URL. The token
// may be empty when the control plane does not require one (e.g. a local
// relay).
func NewMetricsClient(baseURL string, authToken string) *MetricsClient {
	return &MetricsClient{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// PostMetrics submits one interval's payload:
// POST {base}/metrics/{environment}?cluster={cluster}
// A non-2xx status is an error; the caller decides whether to drop the batch.
func (c *MetricsClient) PostMetrics(ctx context.Context, environment string, cluster string, payload Metrics) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal metrics payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/metrics/%s?cluster=%s",
		c.baseURL, url.PathEscape(environment), url.QueryEscape(cluster))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build metrics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post metrics: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metrics server returned status %d", resp.StatusCode)
	}
	return nil
}
