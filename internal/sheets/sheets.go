// Package sheets reads the URL list from a Google Sheet and keeps a local
// copy so a later outage can fall back to the last good list.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/httpretry"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/retry"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/storage"
)

// ReadOnlyScope is the OAuth scope for reading spreadsheet values.
const ReadOnlyScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

// Cache is the document written after every successful read.
type Cache struct {
	URLs        []string `json:"urls"`
	LastUpdated string   `json:"lastUpdated"`
	Source      string   `json:"source"`
	Description string   `json:"description"`
}

type valueRange struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// Source is a spreadsheet range holding one URL per cell.
type Source struct {
	baseURL    string
	sheetID    string
	readRange  string
	httpClient httpretry.HTTPDoer
	cache      storage.Blob
	cacheKey   string
	now        func() time.Time
}

// NewSource creates a source. cache may be nil to disable caching.
func NewSource(baseURL, sheetID, readRange string, doer httpretry.HTTPDoer, cache storage.Blob, cacheKey string) *Source {
	return &Source{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		sheetID:    sheetID,
		readRange:  readRange,
		httpClient: httpretry.NewRetryClient(doer, retry.NewExponential(2)),
		cache:      cache,
		cacheKey:   cacheKey,
		now:        time.Now,
	}
}

// URLs returns the sheet's URLs, else the cached list, else nil. A nil result
// tells the caller to use the local URL config.
func (s *Source) URLs(ctx context.Context) []string {
	urls, err := s.Fetch(ctx)
	if err == nil && len(urls) > 0 {
		logger.Info("urls loaded from google sheets", "count", len(urls), "sheet_id", s.sheetID)
		s.saveCache(ctx, urls)
		return urls
	}
	if err != nil {
		logger.Warn("google sheets unavailable", "sheet_id", s.sheetID, "error", err)
	} else {
		logger.Warn("google sheets returned no urls", "sheet_id", s.sheetID)
	}

	cached, err := s.LoadCache(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("url cache unreadable", "key", s.cacheKey, "error", err)
		}
		return nil
	}
	if len(cached.URLs) == 0 {
		return nil
	}
	logger.Info("urls loaded from cache", "count", len(cached.URLs), "cached_at", cached.LastUpdated)
	return cached.URLs
}

// Fetch reads the configured range and keeps trimmed cells starting with "/".
func (s *Source) Fetch(ctx context.Context) ([]string, error) {
	reqURL := fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		s.baseURL, url.PathEscape(s.sheetID), url.PathEscape(s.readRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheets API error (status %d): %s", resp.StatusCode, string(body))
	}

	var vr valueRange
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var urls []string
	for _, row := range vr.Values {
		for _, cell := range row {
			str, ok := cell.(string)
			if !ok {
				continue
			}
			if str = strings.TrimSpace(str); strings.HasPrefix(str, "/") {
				urls = append(urls, str)
			}
		}
	}
	return urls, nil
}

// LoadCache returns the last list saved by URLs.
func (s *Source) LoadCache(ctx context.Context) (*Cache, error) {
	if s.cache == nil {
		return nil, storage.ErrNotFound
	}
	var c Cache
	if err := storage.GetJSON(ctx, s.cache, s.cacheKey, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Source) saveCache(ctx context.Context, urls []string) {
	if s.cache == nil {
		return
	}
	c := Cache{
		URLs:        urls,
		LastUpdated: report.FormatTimestamp(s.now()),
		Source:      "google-sheets",
		Description: "Cache de URLs desde Google Sheets",
	}
	if err := storage.PutJSON(ctx, s.cache, s.cacheKey, c); err != nil {
		logger.Warn("saving url cache failed", "key", s.cacheKey, "error", err)
	}
}
