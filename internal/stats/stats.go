// Package stats derives the read views of the consolidated store. Every view
// is recomputed from the full store on each call.
package stats

import (
	"errors"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

var (
	// ErrExecutionNotFound is returned by ExecutionDetail for unknown ids.
	ErrExecutionNotFound = errors.New("execution not found")
	// ErrNoMatch is returned by URLHistory when no stored URL matches the query.
	ErrNoMatch = errors.New("no URL matches query")
)

// URLExecution is one appearance of a URL in the per-URL aggregate.
type URLExecution struct {
	ID       string `json:"id"`
	Date     string `json:"fecha"`
	Views    int64  `json:"vistas"`
	Sessions int64  `json:"sesiones"`
	Users    int64  `json:"usuarios"`
}

// URLStat aggregates one URL across every execution that contains it.
// Rate averages are plain means over appearances, not session-weighted.
type URLStat struct {
	URL           string         `json:"url"`
	Appearances   int            `json:"apariciones"`
	TotalViews    int64          `json:"totalVistas"`
	TotalSessions int64          `json:"totalSesiones"`
	TotalUsers    int64          `json:"totalUsuarios"`
	AvgEngagement float64        `json:"promedioCompromiso"`
	AvgBounce     float64        `json:"promedioRebote"`
	SuccessCount  int            `json:"datosExitosos"`
	SuccessRate   float64        `json:"tasaExito"`
	Executions    []URLExecution `json:"ejecuciones"`
}

// URLStats returns one aggregate per URL ordered by total views, descending.
func URLStats(store *report.Store) []URLStat {
	byURL := make(map[string]*URLStat)
	sums := make(map[string]*[2]float64)

	for _, id := range sortedIDs(store) {
		exec := store.Executions[id]
		for url, rec := range exec.URLs {
			st, ok := byURL[url]
			if !ok {
				st = &URLStat{URL: url, Executions: []URLExecution{}}
				byURL[url] = st
				sums[url] = &[2]float64{}
			}
			st.Appearances++
			st.TotalViews += rec.Metrics.Views
			st.TotalSessions += rec.Metrics.Sessions
			st.TotalUsers += rec.Metrics.ActiveUsers
			sums[url][0] += rec.Metrics.EngagementRate
			sums[url][1] += rec.Metrics.BounceRate
			if rec.DataFound {
				st.SuccessCount++
			}
			st.Executions = append(st.Executions, URLExecution{
				ID:       id,
				Date:     exec.Metadata.Date,
				Views:    rec.Metrics.Views,
				Sessions: rec.Metrics.Sessions,
				Users:    rec.Metrics.ActiveUsers,
			})
		}
	}

	out := make([]URLStat, 0, len(byURL))
	for url, st := range byURL {
		n := float64(st.Appearances)
		st.AvgEngagement = round2(sums[url][0] / n)
		st.AvgBounce = round2(sums[url][1] / n)
		st.SuccessRate = round2(float64(st.SuccessCount) / n * 100)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalViews != out[j].TotalViews {
			return out[i].TotalViews > out[j].TotalViews
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// HistoryEntry is one execution of the URL picked by URLHistory. Timestamp is
// the execution instant; the record's own processing time is not exposed here.
type HistoryEntry struct {
	ExecutionID string `json:"ejecucionId"`
	Date        string `json:"fecha"`
	Time        string `json:"hora"`
	Timestamp   string `json:"timestamp"`
	report.MetricsRecord
}

// HistorySummary totals one URL's history.
type HistorySummary struct {
	TotalViews    int64   `json:"totalVistas"`
	TotalSessions int64   `json:"totalSesiones"`
	TotalUsers    int64   `json:"totalUsuarios"`
	AvgEngagement float64 `json:"promedioCompromiso"`
	AvgBounce     float64 `json:"promedioRebote"`
}

// URLHistory is the single-URL view.
type URLHistory struct {
	URL             string         `json:"url"`
	Matches         []string       `json:"matches"`
	TotalExecutions int            `json:"totalEjecuciones"`
	History         []HistoryEntry `json:"history"`
	Summary         HistorySummary `json:"summary"`
}

// MatchURLs returns the stored URLs matching query, in store order: a
// case-folded substring match in either direction.
func MatchURLs(store *report.Store, query string) []string {
	fold := cases.Fold()
	q := fold.String(query)
	if q == "" {
		return nil
	}
	var out []string
	for _, url := range store.Metadata.DistinctURLs {
		u := fold.String(url)
		if strings.Contains(u, q) || strings.Contains(q, u) {
			out = append(out, url)
		}
	}
	return out
}

// PickURL prefers the exact "/<query>/" among matches, else the first match.
func PickURL(matches []string, query string) string {
	exact := "/" + strings.Trim(query, "/") + "/"
	for _, m := range matches {
		if m == exact {
			return m
		}
	}
	return matches[0]
}

// Lookup resolves a possibly partial URL to the URL it selects.
func Lookup(store *report.Store, query string) (string, []string, error) {
	matches := MatchURLs(store, query)
	if len(matches) == 0 {
		return "", nil, ErrNoMatch
	}
	return PickURL(matches, query), matches, nil
}

// History builds the per-execution history of one URL, ascending by time.
func History(store *report.Store, query string) (*URLHistory, error) {
	target, matches, err := Lookup(store, query)
	if err != nil {
		return nil, err
	}

	h := &URLHistory{URL: target, Matches: matches, History: []HistoryEntry{}}
	var engagement, bounce float64
	for id, exec := range store.Executions {
		rec, ok := exec.URLs[target]
		if !ok {
			continue
		}
		h.History = append(h.History, HistoryEntry{
			ExecutionID:   id,
			Date:          exec.Metadata.Date,
			Time:          exec.Metadata.Time,
			Timestamp:     exec.Metadata.Timestamp,
			MetricsRecord: rec,
		})
		h.Summary.TotalViews += rec.Metrics.Views
		h.Summary.TotalSessions += rec.Metrics.Sessions
		h.Summary.TotalUsers += rec.Metrics.ActiveUsers
		engagement += rec.Metrics.EngagementRate
		bounce += rec.Metrics.BounceRate
	}
	sort.Slice(h.History, func(i, j int) bool {
		a, b := h.History[i], h.History[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.ExecutionID < b.ExecutionID
	})

	h.TotalExecutions = len(h.History)
	if n := float64(len(h.History)); n > 0 {
		h.Summary.AvgEngagement = round2(engagement / n)
		h.Summary.AvgBounce = round2(bounce / n)
	}
	return h, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func sortedIDs(store *report.Store) []string {
	ids := make([]string, 0, len(store.Executions))
	for id := range store.Executions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
