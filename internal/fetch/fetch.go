package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrBodyTooLarge = errors.New("response body too large")
)

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

// maximum size of a single response body (registry documents and release assets)
const defaultMaxBodySize = 64 << 20

type Client struct {
	retryableClient *retryablehttp.Client
	maxBodySize     int64
}

// New returns a client that attempts each request retryMax+1 times.
func New(timeout time.Duration, retryMax int) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = retryMax
	rc.HTTPClient.Timeout = timeout
	return &Client{retryableClient: rc, maxBodySize: defaultMaxBodySize}
}

// StandardClient exposes the underlying transport as a plain *http.Client so
// other API clients share its timeout and retry policy.
func (c *Client) StandardClient() *http.Client {
	return c.retryableClient.StandardClient()
}

// Get fetches url and returns the response body. A 404 status yields
// ErrNotFound, any other non-2xx status a *StatusError. Bodies over the size
// limit yield ErrBodyTooLarge instead of a truncated body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.retryableClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: res.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, url, c.maxBodySize)
	}
	return body, nil
}
