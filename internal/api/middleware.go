package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/metrics"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/httputil"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
)

// recoverer turns a handler panic into the API's 500 body.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("panic serving request", "path", r.URL.Path, "panic", fmt.Sprint(rec),
				"request_id", middleware.GetReqID(r.Context()), "stack", string(debug.Stack()))
			httputil.JSON(w, http.StatusInternalServerError, httputil.Fields{
				"error":   "Error interno del servidor",
				"message": fmt.Sprint(rec),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// countRequests records each request under its route pattern.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
