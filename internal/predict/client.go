package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Response is an upstream answer. Body is returned verbatim.
type Response struct {
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// StatusText is the reason phrase without the numeric code, e.g. "Bad Gateway"
func (r *Response) StatusText() string {
	if text := strings.TrimSpace(strings.TrimPrefix(r.Status, fmt.Sprint(r.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(r.StatusCode)
}

// Client talks to the prediction API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// BaseURL returns the configured API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RegionalStatus fetches /api/v1/regional/status
func (c *Client) RegionalStatus(ctx context.Context) (*Response, error) {
	return c.Get(ctx, "/api/v1/regional/status")
}

// StopPredictions fetches /api/v1/stops/{stopID}/predictions
func (c *Client) StopPredictions(ctx context.Context, stopID string) (*Response, error) {
	return c.Get(ctx, "/api/v1/stops/"+url.PathEscape(stopID)+"/predictions")
}

// Get requests path under the API root. An error means the request failed or a
// 2xx body was not JSON; non-2xx answers are returned without error.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &Response{URL: target, StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	if out.OK() && !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON from %s", target)
	}
	return out, nil
}
