package zipkin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"meshconsolidator/internal/core/domain/mesh"
	apperrors "meshconsolidator/internal/errors"
)

const tracesPath = "/zipkin/api/v2/traces"

// Client fetches span batches from a Zipkin-compatible tracing backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds the client's construction parameters.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New constructs a Client. The underlying http.Client advertises gzip
// support implicitly (net/http transparently requests and decodes gzip
// unless the caller sets Accept-Encoding itself).
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchTraces retrieves span batches (one slice per trace) for the
// istio-ingressgateway service within the window ending at endTsMs, going
// back lookBackMs, capped at 2500 spans.
func (c *Client) FetchTraces(ctx context.Context, endTsMs, lookBackMs uint64) ([][]mesh.Span, error) {
	url := fmt.Sprintf(
		"%s%s?serviceName=istio-ingressgateway.istio-system&endTs=%d&lookback=%d&limit=2500",
		c.baseURL, tracesPath, endTsMs, lookBackMs,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("zipkin: failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("zipkin: request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError("zipkin: failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError(
			"zipkin: unexpected status code",
			fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body)),
		)
	}

	var traces [][]mesh.Span
	if err := json.Unmarshal(body, &traces); err != nil {
		return nil, apperrors.NewDeserializeError("zipkin: malformed trace payload", err)
	}

	return traces, nil
}
