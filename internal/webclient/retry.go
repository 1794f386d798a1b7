package webclient

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// retryConfig bounds the retry loop. Thumbnail CDNs and lyrics sites throw
// occasional 5xx/429 responses that clear up within a few seconds, so a
// short, capped backoff covers the useful cases.
type retryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var defaultRetryConfig = retryConfig{
	MaxRetries:   3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     8 * time.Second,
}

// retryTransport retries transient failures of the underlying RoundTripper.
// Only GET-style requests flow through this package, so replaying is safe.
type retryTransport struct {
	base http.RoundTripper
	cfg  retryConfig
}

func newRetryTransport(base http.RoundTripper, cfg retryConfig) *retryTransport {
	return &retryTransport{base: base, cfg: cfg}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var staleResp *http.Response
	var lastErr error

	attempts := t.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(req.Context(), t.delayFor(attempt)); err != nil {
				closeResponse(staleResp)
				return nil, err
			}
			replay, err := replayableRequest(req)
			if err != nil {
				// A body that cannot be re-read cannot be retried; surface
				// whatever the first attempt produced.
				if staleResp != nil {
					return staleResp, nil
				}
				return nil, lastErr
			}
			req = replay
		}

		resp, err := t.base.RoundTrip(req)
		switch {
		case err != nil && transientError(err):
			lastErr = err
			continue
		case err != nil:
			closeResponse(staleResp)
			return nil, err
		case transientStatus(resp.StatusCode):
			// Keep the newest response in case this was the final attempt,
			// and release the one it replaces.
			closeResponse(staleResp)
			staleResp = resp
			lastErr = nil
			continue
		}
		closeResponse(staleResp)
		return resp, nil
	}

	if staleResp != nil {
		return staleResp, nil
	}
	return nil, lastErr
}

// delayFor doubles the initial delay per attempt up to the cap, then spreads
// attempts out with up to 25% randomization in either direction.
func (t *retryTransport) delayFor(attempt int) time.Duration {
	delay := t.cfg.InitialDelay << (attempt - 1)
	if delay > t.cfg.MaxDelay || delay <= 0 {
		delay = t.cfg.MaxDelay
	}
	spread := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4 //nolint:gosec
	return delay + spread
}

func closeResponse(resp *http.Response) {
	if resp != nil {
		resp.Body.Close()
	}
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 504)
}

func transientError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// replayableRequest rebuilds the request for another attempt, re-reading the
// body through GetBody when one exists.
func replayableRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

// sleepWithContext waits out the delay unless the request context ends first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
