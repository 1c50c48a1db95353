// Package actuator drives the optional LIFX-style light signal for completed
// orders. Actuation is strictly best-effort; callers log failures and move
// on, and no queue decision ever depends on it.
package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client sets light state through a LIFX-compatible HTTP API.
type Client struct {
	baseURL    string
	token      string
	selector   string
	httpClient *http.Client
}

// New constructs a Client. baseURL is the API root (e.g.
// "https://api.lifx.com"), token the API bearer token, selector which lights
// to address (e.g. "all" or "label:Desk").
func New(baseURL, token, selector string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if selector == "" {
		selector = "all"
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		selector: selector,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled reports whether the client has enough configuration to actuate.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.token != ""
}

type stateRequest struct {
	Color    string  `json:"color"`
	Duration float64 `json:"duration"`
}

// SetColor transitions the configured lights to the given color over one
// second. The color value is passed through verbatim; the API validates it.
func (c *Client) SetColor(ctx context.Context, color string) error {
	if !c.Enabled() {
		return fmt.Errorf("actuator not configured")
	}

	bodyBytes, err := json.Marshal(stateRequest{Color: color, Duration: 1})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/lights/%s/state", c.baseURL, url.PathEscape(c.selector))
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// 207 is the API's per-light multi-status; any 2xx means accepted.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("light state response status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}
