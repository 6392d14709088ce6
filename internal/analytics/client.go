// Package analytics pulls per-page metrics from the Google Analytics 4 Data API.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/httpretry"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/retry"
)

// ReadOnlyScope is the OAuth scope for the Data API.
const ReadOnlyScope = "https://www.googleapis.com/auth/analytics.readonly"

// NewHTTPClient returns an http.Client authorized with a service-account key.
func NewHTTPClient(ctx context.Context, credentialsJSON []byte, timeout time.Duration, scopes ...string) (*http.Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = timeout
	return client, nil
}

// Client is the GA4 Data API client
type Client struct {
	baseURL    string
	propertyID string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a client for one property. doer is wrapped in a retrying client.
func NewClient(baseURL, propertyID string, doer httpretry.HTTPDoer) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		propertyID: propertyID,
		httpClient: httpretry.NewRetryClient(doer, retry.NewExponential(3)),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// RunReport executes properties/{id}:runReport.
func (c *Client) RunReport(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	reqURL := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, c.propertyID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("GA4 API error (status %d, %s): %s", resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("GA4 API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out ReportResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
