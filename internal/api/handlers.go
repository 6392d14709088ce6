// Package api serves the consolidated report store and the URL config over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/consolidate"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/httputil"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/scheduler"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/stats"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/storage"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/urlconfig"
)

// StoreReader reads the consolidated store.
type StoreReader interface {
	Key() string
	Load(ctx context.Context) (*report.Store, error)
	Stat(ctx context.Context) (storage.Info, error)
}

// URLConfig manages the URL list.
type URLConfig interface {
	List(ctx context.Context) (*urlconfig.Config, error)
	Add(ctx context.Context, u string) (string, int, error)
	Remove(ctx context.Context, value string) (string, int, error)
	Replace(ctx context.Context, urls []string) (int, error)
}

// Reporter runs the report on demand and reports scheduler state.
type Reporter interface {
	RunNow(ctx context.Context, trigger string) (*scheduler.Outcome, error)
	Status() scheduler.Status
}

// Handlers contains all HTTP handlers
type Handlers struct {
	store    StoreReader
	urls     URLConfig
	reporter Reporter
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(store StoreReader, urls URLConfig, reporter Reporter) *Handlers {
	return &Handlers{store: store, urls: urls, reporter: reporter, now: time.Now}
}

// loadStore writes the error response itself when the store is unavailable.
func (h *Handlers) loadStore(w http.ResponseWriter, r *http.Request) (*report.Store, bool) {
	store, err := h.store.Load(r.Context())
	if errors.Is(err, consolidate.ErrStoreNotFound) {
		httputil.NotFound(w, "Archivo de datos no encontrado", httputil.Fields{
			"message": "Ejecuta primero: reportctl run o reportctl consolidate",
			"file":    h.store.Key(),
		})
		return nil, false
	}
	if err != nil {
		httputil.InternalError(w, err)
		return nil, false
	}
	return store, true
}

// Index describes the service.
//
//	GET /
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	st := h.reporter.Status()
	schedulerState := "inactive"
	if st.Active {
		schedulerState = "active"
	}
	httputil.OK(w, httputil.Fields{
		"title":       "📊 API de Reportes GA4 - Sistema Completo",
		"version":     "2.0.0",
		"description": "API REST + Scheduler automático",
		"status": httputil.Fields{
			"api":           "running",
			"scheduler":     schedulerState,
			"nextExecution": report.FormatTimestamp(st.NextExecution),
		},
		"endpoints": httputil.Fields{
			"/api/health":         "Estado de la API",
			"/api/stats":          "Estadísticas generales",
			"/api/executions":     "Lista de ejecuciones",
			"/api/urls":           "Resumen por URLs",
			"/api/execution/:id":  "Detalle de una ejecución",
			"/api/url/:urlPath":   "Historial de una URL",
			"/api/raw":            "Datos completos",
			"/api/trigger-report": "Ejecutar reporte manualmente (POST)",
			"/api/config/urls":    "Gestión de URLs (GET, POST, PUT, DELETE)",
		},
		"scheduler": httputil.Fields{
			"schedule":    st.Schedule,
			"description": st.Description,
			"timezone":    st.Timezone,
		},
	})
}

// Stats returns the global overview.
//
//	GET /api/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	store, ok := h.loadStore(w, r)
	if !ok {
		return
	}
	httputil.OK(w, stats.Summarize(store))
}

// Executions lists every execution.
//
//	GET /api/executions
func (h *Handlers) Executions(w http.ResponseWriter, r *http.Request) {
	store, ok := h.loadStore(w, r)
	if !ok {
		return
	}
	list := stats.Executions(store)
	httputil.OK(w, httputil.Fields{"total": len(list), "executions": list})
}

// URLs returns the per-URL aggregates.
//
//	GET /api/urls
func (h *Handlers) URLs(w http.ResponseWriter, r *http.Request) {
	store, ok := h.loadStore(w, r)
	if !ok {
		return
	}
	list := stats.URLStats(store)
	httputil.OK(w, httputil.Fields{"total": len(list), "urls": list})
}

// Execution returns one execution.
//
//	GET /api/execution/{id}
func (h *Handlers) Execution(w http.ResponseWriter, r *http.Request) {
	store, ok := h.loadStore(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	detail, err := stats.Detail(store, id)
	if errors.Is(err, stats.ErrExecutionNotFound) {
		httputil.NotFound(w, "Ejecución no encontrada", httputil.Fields{
			"id":        id,
			"available": stats.ExecutionIDs(store),
		})
		return
	}
	httputil.OK(w, detail)
}

// URLHistory returns the history of the URL best matching the path.
//
//	GET /api/url/{urlPath}
func (h *Handlers) URLHistory(w http.ResponseWriter, r *http.Request) {
	store, ok := h.loadStore(w, r)
	if !ok {
		return
	}
	query := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(query); err == nil {
		query = decoded
	}
	history, err := stats.History(store, query)
	if errors.Is(err, stats.ErrNoMatch) {
		httputil.NotFound(w, "URL no encontrada", httputil.Fields{
			"searchTerm":    query,
			"availableUrls": store.Metadata.DistinctURLs,
		})
		return
	}
	httputil.OK(w, history)
}

// Raw returns the whole store.
//
//	GET /api/raw
func (h *Handlers) Raw(w http.ResponseWriter, r *http.Request) {
	store, ok := h.loadStore(w, r)
	if !ok {
		return
	}
	httputil.OK(w, store)
}

// TriggerReport runs the report synchronously. The run is detached from the
// request context so a dropped client does not abort it halfway.
//
//	POST /api/trigger-report
func (h *Handlers) TriggerReport(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	o, err := h.reporter.RunNow(ctx, scheduler.TriggerManual)
	if errors.Is(err, scheduler.ErrRunInProgress) {
		httputil.Error(w, http.StatusConflict, "Ya hay un reporte en ejecución", nil)
		return
	}
	if err != nil {
		httputil.JSON(w, http.StatusInternalServerError, httputil.Fields{
			"error":   "Error ejecutando reporte",
			"message": err.Error(),
		})
		return
	}

	body := httputil.Fields{
		"message":   "Reporte ejecutado",
		"success":   o.Success,
		"runId":     o.RunID,
		"duration":  o.DurationSeconds(),
		"logFile":   o.LogFile,
		"timestamp": report.FormatTimestamp(h.now()),
	}
	if o.ExecutionID != "" {
		body["executionId"] = o.ExecutionID
	}
	if o.Summary != nil {
		body["summary"] = o.Summary
	}
	if o.Error != "" {
		body["error"] = o.Error
	}
	httputil.OK(w, body)
}

// NotFound lists the available endpoints.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	httputil.NotFound(w, "Endpoint no encontrado", httputil.Fields{"available": availableEndpoints})
}
