package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/collector"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/consolidate"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/scheduler"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/storage"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/urlconfig"
)

var testNow = time.Date(2025, 10, 8, 9, 0, 0, 0, time.UTC)

type fakeReporter struct {
	outcome *scheduler.Outcome
	err     error
	status  scheduler.Status
	calls   int
}

func (f *fakeReporter) RunNow(context.Context, string) (*scheduler.Outcome, error) {
	f.calls++
	return f.outcome, f.err
}

func (f *fakeReporter) Status() scheduler.Status { return f.status }

type testEnv struct {
	handler  http.Handler
	repo     *consolidate.Repository
	reporter *fakeReporter
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	blob := storage.NewMemory()
	repo := consolidate.NewRepository(blob, "data/consolidated-reports.json",
		consolidate.WithClock(func() time.Time { return testNow }))
	urls := urlconfig.NewManager(blob, "config/urls.json")
	reporter := &fakeReporter{status: scheduler.Status{
		Schedule:      "0 */6 * * *",
		Description:   scheduler.Describe(scheduler.DefaultHours),
		Timezone:      "America/Mexico_City",
		NextExecution: testNow.Add(3 * time.Hour),
	}}

	h := NewHandlers(repo, urls, reporter)
	h.now = func() time.Time { return testNow }
	return &testEnv{handler: NewServer(h, nil).Handler(), repo: repo, reporter: reporter}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	rec := func(views, sessions int64, found bool) report.MetricsRecord {
		return report.MetricsRecord{
			Metrics:          report.Metrics{Views: views, Sessions: sessions, ActiveUsers: sessions},
			DataFound:        found,
			TrafficBreakdown: map[string]report.TrafficSource{},
		}
	}
	store := report.NewStore(testNow)
	for _, ex := range []struct {
		id, date, clock, ts string
		urls                map[string]report.MetricsRecord
	}{
		{"2025-10-07_00-00", "2025-10-07", "00:00", "2025-10-07T06:00:00.000Z",
			map[string]report.MetricsRecord{"/a/": rec(10, 5, true), "/blog/post/": rec(3, 2, true)}},
		{"2025-10-07_06-00", "2025-10-07", "06:00", "2025-10-07T12:00:00.000Z",
			map[string]report.MetricsRecord{"/a/": rec(0, 0, false)}},
	} {
		exec := &report.Execution{ID: ex.id, URLs: ex.urls,
			Metadata: report.ExecutionMetadata{Date: ex.date, Time: ex.clock, Timestamp: ex.ts}}
		store = consolidate.MergeExecution(store, exec, report.SourceFile{File: "report_" + ex.id + ".csv", ExecutionID: ex.id}, testNow)
	}
	require.NoError(t, e.repo.Persist(context.Background(), store))
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func TestMissingStore(t *testing.T) {
	env := setupTestServer(t)

	for _, path := range []string{"/api/stats", "/api/executions", "/api/urls", "/api/raw", "/api/health", "/api/url/a", "/api/execution/x"} {
		rr, body := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Equal(t, "Archivo de datos no encontrado", body["error"], path)
		assert.Equal(t, "data/consolidated-reports.json", body["file"], path)
	}
}

func TestStatsAndExecutions(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	rr, body := env.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2.0, body["totalEjecuciones"])
	assert.Equal(t, 2.0, body["urlsUnicas"])
	assert.Equal(t, 2.0, body["archivosOriginales"])
	assert.Equal(t, map[string]any{"desde": "2025-10-07", "hasta": "2025-10-07"}, body["periodo"])

	rr, body = env.do(t, http.MethodGet, "/api/executions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2.0, body["total"])
	first := body["executions"].([]any)[0].(map[string]any)
	assert.Equal(t, "2025-10-07_00-00", first["id"])
	assert.Equal(t, 2.0, first["urlsProcessed"])
	assert.Equal(t, "00:00", first["horaEjecucion"])
}

func TestURLsAggregate(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	rr, body := env.do(t, http.MethodGet, "/api/urls", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2.0, body["total"])

	a := body["urls"].([]any)[0].(map[string]any)
	assert.Equal(t, "/a/", a["url"])
	assert.Equal(t, 2.0, a["apariciones"])
	assert.Equal(t, 10.0, a["totalVistas"])
	assert.Equal(t, 5.0, a["totalSesiones"])
	assert.Equal(t, 50.0, a["tasaExito"])
}

func TestExecutionDetail(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	rr, body := env.do(t, http.MethodGet, "/api/execution/2025-10-07_00-00", "")
	require.Equal(t, http.StatusOK, rr.Code)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 2.0, summary["totalUrls"])
	assert.Equal(t, 2.0, summary["urlsConDatos"])
	assert.Equal(t, 13.0, summary["totalVistas"])

	rr, body = env.do(t, http.MethodGet, "/api/execution/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Ejecución no encontrada", body["error"])
	assert.Equal(t, []any{"2025-10-07_00-00", "2025-10-07_06-00"}, body["available"])
}

func TestURLHistory(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	rr, body := env.do(t, http.MethodGet, "/api/url/BLOG", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/blog/post/", body["url"])
	assert.Equal(t, 1.0, body["totalEjecuciones"])

	rr, body = env.do(t, http.MethodGet, "/api/url/blog/post", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/blog/post/", body["url"])

	rr, body = env.do(t, http.MethodGet, "/api/url/a", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/a/", body["url"])
	history := body["history"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, "2025-10-07_00-00", history[0].(map[string]any)["ejecucionId"])

	rr, body = env.do(t, http.MethodGet, "/api/url/zzz", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "URL no encontrada", body["error"])
	assert.Equal(t, "zzz", body["searchTerm"])
	assert.Len(t, body["availableUrls"], 2)
}

func TestRawAndHealth(t *testing.T) {
	env := setupTestServer(t)
	env.seed(t)

	rr, body := env.do(t, http.MethodGet, "/api/raw", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, body, "data")
	assert.Contains(t, body, "metadata")

	rr, body = env.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", body["status"])
	dataFile := body["dataFile"].(map[string]any)
	assert.Equal(t, 2.0, dataFile["executions"])
	assert.True(t, strings.HasSuffix(dataFile["size"].(string), " KB"))
	sched := body["scheduler"].(map[string]any)
	assert.Equal(t, false, sched["active"])
	assert.Equal(t, "2025-10-08T12:00:00.000Z", sched["nextExecution"])
}

func TestIndex(t *testing.T) {
	env := setupTestServer(t)

	rr, body := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := body["status"].(map[string]any)
	assert.Equal(t, "running", status["api"])
	assert.Equal(t, "inactive", status["scheduler"])
	assert.Len(t, body["endpoints"], 9)
}

func TestNotFoundListsEndpoints(t *testing.T) {
	env := setupTestServer(t)

	rr, body := env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Endpoint no encontrado", body["error"])
	available := body["available"].([]any)
	assert.Len(t, available, 9)
	assert.Contains(t, available, "/api/stats")

	rr, _ = env.do(t, http.MethodGet, "/api/trigger-report", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConfigURLFlow(t *testing.T) {
	env := setupTestServer(t)

	rr, body := env.do(t, http.MethodPost, "/api/config/urls", `{"url":"foo"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/foo/", body["url"])
	assert.Equal(t, 1.0, body["total"])

	rr, body = env.do(t, http.MethodPost, "/api/config/urls", `{"url":"/foo/"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, `La URL "/foo/" ya existe`, body["error"])

	rr, body = env.do(t, http.MethodPost, "/api/config/urls", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `El campo "url" es requerido`, body["error"])

	rr, body = env.do(t, http.MethodPut, "/api/config/urls", `{"urls":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `El campo "urls" debe ser un array`, body["error"])

	rr, body = env.do(t, http.MethodPut, "/api/config/urls", `{"urls":["a","/a/"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "La lista contiene URLs duplicadas", body["error"])

	rr, body = env.do(t, http.MethodPut, "/api/config/urls", `{"urls":["a","b"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2.0, body["total"])

	rr, body = env.do(t, http.MethodDelete, "/api/config/urls", `{"url":1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/a/", body["url"])

	rr, body = env.do(t, http.MethodDelete, "/api/config/urls", `{"url":"zzz"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, `URL "/zzz/" no encontrada`, body["error"])

	rr, body = env.do(t, http.MethodDelete, "/api/config/urls", ``)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `El campo "url" es requerido para eliminar`, body["error"])

	rr, body = env.do(t, http.MethodGet, "/api/config/urls", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{"/b/"}, body["urls"])
	assert.Equal(t, urlconfig.DefaultDescription, body["description"])
}

func TestTriggerReport(t *testing.T) {
	env := setupTestServer(t)
	env.reporter.outcome = &scheduler.Outcome{
		RunID:       "run-1",
		ExecutionID: "2025-10-08_09-00",
		Success:     true,
		Duration:    1500 * time.Millisecond,
		LogFile:     "logs/ga4_report_2025-10-08_09-00.log",
		Summary:     &collector.Summary{TotalURLs: 1, Successful: 1},
	}

	rr, body := env.do(t, http.MethodPost, "/api/trigger-report", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Reporte ejecutado", body["message"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "1.50", body["duration"])
	assert.Equal(t, "logs/ga4_report_2025-10-08_09-00.log", body["logFile"])
	assert.Equal(t, "2025-10-08T09:00:00.000Z", body["timestamp"])
	assert.NotContains(t, body, "error")
}

func TestTriggerReportFailedRun(t *testing.T) {
	env := setupTestServer(t)
	env.reporter.outcome = &scheduler.Outcome{Success: false, Error: "consolidating: disk full"}

	rr, body := env.do(t, http.MethodPost, "/api/trigger-report", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "consolidating: disk full", body["error"])
}

func TestTriggerReportErrors(t *testing.T) {
	env := setupTestServer(t)
	env.reporter.err = fmt.Errorf("%w: GA4 configuration: missing property id", collector.ErrPreflight)

	rr, body := env.do(t, http.MethodPost, "/api/trigger-report", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Error ejecutando reporte", body["error"])
	assert.Contains(t, body["message"], "missing property id")

	env.reporter.err = scheduler.ErrRunInProgress
	rr, _ = env.do(t, http.MethodPost, "/api/trigger-report", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRecovererReturnsJSON(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Error interno del servidor", body["error"])
	assert.Equal(t, "boom", body["message"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodGet, "/api/stats", "")

	rr, _ := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ga4_report_api_requests_total")
}
