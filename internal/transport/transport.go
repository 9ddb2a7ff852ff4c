// Package transport performs the backend HTTP calls the data layer depends on.
// Every failure, network or HTTP status, is reported as *Error so callers can
// tell a connectivity problem from a payload shape problem.
package transport

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

	"aur-admin-data/internal/config"
	"aur-admin-data/internal/metrics"
)

// Client is the narrow view of the backend used by queries and mutations.
type Client interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// Error is a failed backend call. Status is 0 when no response was received.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: bad response (%d): %s", e.Method, e.Path, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBodyLen = 512
	contentTypeJSON = "application/json"
)

// HTTPClient talks JSON to the backend rooted at a base URL.
type HTTPClient struct {
	client  *http.Client
	base    *url.URL
	headers map[string]string
	timeout time.Duration
}

func NewHTTPClient(cfg config.Backend, c *http.Client) (*HTTPClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", cfg.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if c == nil {
		c = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &HTTPClient{client: c, base: base, headers: cfg.Headers, timeout: timeout}, nil
}

func (c *HTTPClient) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *HTTPClient) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *HTTPClient) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body any) (raw json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordExternalRequest(method, err, time.Since(start).Seconds())
	}()

	fail := func(status int, respBody string, cause error) error {
		return &Error{Method: method, Path: path, Status: status, Body: respBody, Err: cause}
	}

	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fail(0, "", fmt.Errorf("invalid path: %w", err))
	}
	target := c.base.ResolveReference(ref)
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fail(0, "", fmt.Errorf("failed to marshal body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fail(0, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fail(0, "", fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode/100 != 2 {
		excerpt := string(respBody)
		if len(excerpt) > maxErrorBodyLen {
			excerpt = excerpt[:maxErrorBodyLen]
		}
		return nil, fail(resp.StatusCode, excerpt, fmt.Errorf("unexpected status %s", resp.Status))
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(respBody), nil
}
