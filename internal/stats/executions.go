package stats

import (
	"sort"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// ExecutionSummary is one row of the executions listing.
type ExecutionSummary struct {
	ID string `json:"id"`
	report.ExecutionMetadata
	URLsProcessed int `json:"urlsProcessed"`
}

// Executions lists every execution ascending by timestamp (ties by id).
func Executions(store *report.Store) []ExecutionSummary {
	out := make([]ExecutionSummary, 0, len(store.Executions))
	for id, exec := range store.Executions {
		out = append(out, ExecutionSummary{
			ID:                id,
			ExecutionMetadata: exec.Metadata,
			URLsProcessed:     len(exec.URLs),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ExecutionIDs lists the stored ids in lexical (chronological) order.
func ExecutionIDs(store *report.Store) []string {
	return sortedIDs(store)
}

// DetailSummary totals one execution. URLsWithData counts dataFound records.
type DetailSummary struct {
	TotalURLs     int   `json:"totalUrls"`
	URLsWithData  int   `json:"urlsConDatos"`
	TotalViews    int64 `json:"totalVistas"`
	TotalSessions int64 `json:"totalSesiones"`
	TotalUsers    int64 `json:"totalUsuarios"`
}

// ExecutionDetail is one execution with its derived summary.
type ExecutionDetail struct {
	ID       string                          `json:"id"`
	Metadata report.ExecutionMetadata        `json:"metadata"`
	URLs     map[string]report.MetricsRecord `json:"urls"`
	Summary  DetailSummary                   `json:"summary"`
}

// Detail returns execution id or ErrExecutionNotFound.
func Detail(store *report.Store, id string) (*ExecutionDetail, error) {
	exec, ok := store.Executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}

	d := &ExecutionDetail{ID: id, Metadata: exec.Metadata, URLs: exec.URLs}
	d.Summary.TotalURLs = len(exec.URLs)
	for _, rec := range exec.URLs {
		if rec.DataFound {
			d.Summary.URLsWithData++
		}
		d.Summary.TotalViews += rec.Metrics.Views
		d.Summary.TotalSessions += rec.Metrics.Sessions
		d.Summary.TotalUsers += rec.Metrics.ActiveUsers
	}
	return d, nil
}

// Period spans the first and last execution dates.
type Period struct {
	From string `json:"desde"`
	To   string `json:"hasta"`
}

// Overview is the global statistics view.
type Overview struct {
	TotalExecutions int      `json:"totalEjecuciones"`
	DistinctURLs    int      `json:"urlsUnicas"`
	LastUpdated     string   `json:"ultimaActualizacion"`
	Period          *Period  `json:"periodo"`
	URLs            []string `json:"urls"`
	SourceFiles     int      `json:"archivosOriginales"`
}

// Summarize builds the overview. Period is set only with more than one execution.
func Summarize(store *report.Store) Overview {
	o := Overview{
		TotalExecutions: store.Metadata.TotalExecutions,
		DistinctURLs:    len(store.Metadata.DistinctURLs),
		LastUpdated:     store.Metadata.LastUpdated,
		URLs:            store.Metadata.DistinctURLs,
		SourceFiles:     len(store.Metadata.SourceFiles),
	}
	if o.URLs == nil {
		o.URLs = []string{}
	}
	ids := sortedIDs(store)
	if len(ids) > 1 {
		o.Period = &Period{
			From: store.Executions[ids[0]].Metadata.Date,
			To:   store.Executions[ids[len(ids)-1]].Metadata.Date,
		}
	}
	return o
}
