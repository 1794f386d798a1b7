// Package webclient provides the HTTP client used for thumbnail downloads and
// lyrics page fetches: a shared transport with sane limits, browser-consistent
// request headers, and retries for transient failures.
package webclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodyBytes bounds response bodies read by Get. Thumbnails and lyrics
// pages are small; anything larger is a misdirected fetch.
const maxBodyBytes = 16 << 20

var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 15 * time.Second,
	IdleConnTimeout:       90 * time.Second,
}

func CloseIdleConnections() {
	sharedTransport.CloseIdleConnections()
}

// consistentTransport fills in browser-like headers so lyrics sites and image
// CDNs treat requests the same way across the whole process.
type consistentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *consistentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	return t.base.RoundTrip(req)
}

// New returns a client with browser-consistent headers and retrying transport.
// A zero timeout means no client-level timeout; callers should then bound
// requests with a context.
func New(timeout time.Duration) *http.Client {
	var transport http.RoundTripper = &consistentTransport{
		base:      sharedTransport,
		userAgent: browserUserAgent,
	}
	transport = newRetryTransport(transport, defaultRetryConfig)
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StatusError reports a non-2xx response from Get.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// Get fetches a URL and returns the response body, failing on non-2xx status.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}
