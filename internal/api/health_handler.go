package api

import (
	"fmt"
	"net/http"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/httputil"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// Health reports the scheduler state and the store file.
//
//	GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	store, ok := h.loadStore(w, r)
	if !ok {
		return
	}
	info, err := h.store.Stat(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	st := h.reporter.Status()
	schedulerInfo := httputil.Fields{
		"active":        st.Active,
		"nextExecution": report.FormatTimestamp(st.NextExecution),
		"schedule":      st.Schedule,
	}
	if st.LastOutcome != nil {
		schedulerInfo["lastRun"] = st.LastOutcome
	}

	httputil.OK(w, httputil.Fields{
		"status":    "OK",
		"timestamp": report.FormatTimestamp(h.now()),
		"scheduler": schedulerInfo,
		"dataFile": httputil.Fields{
			"path":         h.store.Key(),
			"size":         fmt.Sprintf("%.2f KB", float64(info.Size)/1024),
			"lastModified": report.FormatTimestamp(info.ModTime),
			"executions":   store.Metadata.TotalExecutions,
			"urls":         len(store.Metadata.DistinctURLs),
		},
	})
}
