package translink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoAPIKey is returned when no RTTI key is configured
var ErrNoAPIKey = errors.New("translink API key not found")

// StatusError is a non-2xx answer from the RTTI API
type StatusError struct {
	Code   int
	Status string
	Body   string
}

// Error formats the upstream status
func (e *StatusError) Error() string {
	return fmt.Sprintf("translink API returned %s", e.Status)
}

// StopsQuery selects stops around a point. A nil Lat/Lng asks for all stops.
type StopsQuery struct {
	Lat    *float64
	Lng    *float64
	Radius int
}

// Client is an HTTP client for the TransLink RTTI API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client; baseURL is e.g. https://api.translink.ca/rttiapi/v1
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// HasKey reports whether an API key is configured
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Stops returns the RTTI stops payload verbatim. The body is checked to be a JSON array.
func (c *Client) Stops(ctx context.Context, q StopsQuery) (json.RawMessage, error) {
	if !c.HasKey() {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	if q.Lat != nil && q.Lng != nil {
		params.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
		params.Set("long", strconv.FormatFloat(*q.Lng, 'f', -1, 64))
		if q.Radius > 0 {
			params.Set("radius", strconv.Itoa(q.Radius))
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/stops?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stops: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	var stops []json.RawMessage
	if err := json.Unmarshal(body, &stops); err != nil {
		return nil, fmt.Errorf("failed to decode stops: %w", err)
	}

	log.Printf("Fetched %d bus stops from TransLink API", len(stops))
	return body, nil
}
