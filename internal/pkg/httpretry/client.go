// Package httpretry provides an HTTP client that retries transient failures
// of the analytics and sheets APIs using a retry.Policy.
package httpretry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/retry"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with a retry policy.
type RetryClient struct {
	client HTTPDoer
	policy retry.Policy
}

// NewRetryClient creates a RetryClient around client.
// If client is nil, a default http.Client with 30s timeout is used.
// If policy is nil, exponential backoff with 3 retries is used.
func NewRetryClient(client HTTPDoer, policy retry.Policy) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if policy == nil {
		policy = retry.NewExponential(3)
	}
	return &RetryClient{client: client, policy: policy}
}

// Do executes the request, retrying on 429/5xx and network errors.
// Client errors and context cancellation are never retried. When the policy
// gives up on a retryable status, the last response is returned as-is so the
// caller can read its body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if req.Context().Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, req.Context().Err()
		}

		if attempt > 0 {
			delay, ok := rc.policy.Next(attempt)
			if !ok {
				return nil, lastErr
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
				}
				req.Body = body
			}

			logger.Warn("retrying request", "attempt", attempt, "method", req.Method,
				"host", req.URL.Host, "path", req.URL.Path, "wait", delay.String())

			if err := retry.Sleep(req.Context(), delay); err != nil {
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, err
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		if _, more := rc.policy.Next(attempt + 1); !more {
			return resp, nil
		}

		// drain for connection reuse
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}
}

// isRetryableStatus reports 429, 500, 502, 503 and 504 as transient.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
