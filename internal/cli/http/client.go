// Package httpclient talks to the runner HTTP API on behalf of the CLI.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxBody bounds how much of a reply is kept; run output is already capped
// server side so this is only hit by a misbehaving endpoint.
const maxBody = 8 << 20

// ResponseInfo is one completed exchange.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	RequestID  string // X-Request-Id sent with the request
}

// Client sends requests to one runner base URL with a per-request timeout.
type Client struct {
	base    string
	timeout time.Duration
	hc      *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	c := &Client{hc: &http.Client{}}
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	return c
}

func (c *Client) BaseURL() string        { return c.base }
func (c *Client) Timeout() time.Duration { return c.timeout }

func (c *Client) SetBaseURL(baseURL string) { c.base = strings.TrimRight(baseURL, "/") }

// SetTimeout ignores non-positive values.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var payload io.Reader
	if len(body) > 0 {
		payload = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// Do sends one request and reads the whole reply.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (ResponseInfo, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return ResponseInfo{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	info := ResponseInfo{RequestID: req.Header.Get("X-Request-Id")}

	started := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		info.Duration = time.Since(started)
		return info, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	info.Body, err = io.ReadAll(io.LimitReader(resp.Body, maxBody))
	info.Duration = time.Since(started)
	info.StatusCode = resp.StatusCode
	info.Headers = resp.Header
	if err != nil {
		return info, fmt.Errorf("read %s %s reply: %w", method, path, err)
	}
	return info, nil
}
