package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with retries and a circuit breaker. Request
// bodies are buffered so retries can replay them.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Retries int
	Backoff time.Duration
}

// Do executes the request, retrying transient failures. 5xx responses and
// transport errors count as failures for the breaker; 4xx do not.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	var body []byte
	if req.Body != nil {
		buf, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		body = buf
	}

	attempts := c.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
		}

		if c.Breaker != nil {
			if err := c.Breaker.Allow(req.Context()); err != nil {
				return nil, err
			}
		}

		attemptReq := req.Clone(req.Context())
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
			attemptReq.ContentLength = int64(len(body))
		}

		resp, err := client.Do(attemptReq)
		outcome := callOutcome(resp, err)
		if c.Breaker != nil {
			c.Breaker.Record(outcome)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("upstream status %d", resp.StatusCode)
			drainAndClose(resp)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func callOutcome(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	if resp != nil && resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// Ping issues a GET against the given URL, used by readiness checks.
func (c *HTTPClient) Ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	drainAndClose(resp)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("ping status %d", resp.StatusCode)
	}
	return nil
}
