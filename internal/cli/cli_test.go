package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// writeConfig points every path of a local-storage config into a temp dir.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`storage:
  type: local
paths:
  data_dir: %[1]s/data
  url_config: %[1]s/config/urls.json
  log_dir: %[1]s/logs
sheets:
  cache_path: %[1]s/config/urls-cache.json
ga4:
  credentials_path: %[1]s/missing.json
scheduler:
  enabled: false
`, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	return path, dir
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeReport(t *testing.T, dir, name string, records ...report.MetricsRecord) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, "data", name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, report.WriteCSV(f, records))
}

func TestURLCommands(t *testing.T) {
	cfg, _ := writeConfig(t)

	out, err := execute(t, cfg, "urls", "add", "foo")
	require.NoError(t, err)
	assert.Contains(t, out, "URL agregada: /foo/ (total 1)")

	_, err = execute(t, cfg, "urls", "add", "/foo/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ya existe")

	out, err = execute(t, cfg, "urls", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/foo/")
	assert.Contains(t, out, "Total: 1")

	out, err = execute(t, cfg, "urls", "remove", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "URL eliminada: /foo/ (total 0)")

	_, err = execute(t, cfg, "urls", "remove", "zzz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"/zzz/" no encontrada`)

	_, err = execute(t, cfg, "urls", "add", "a")
	require.NoError(t, err)
	_, err = execute(t, cfg, "urls", "add", "b")
	require.NoError(t, err)
	out, err = execute(t, cfg, "urls", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Se eliminaron 2 URLs")

	out, err = execute(t, cfg, "urls")
	require.NoError(t, err)
	assert.Contains(t, out, "No hay URLs configuradas")
}

func TestViewWithoutStore(t *testing.T) {
	cfg, _ := writeConfig(t)

	_, err := execute(t, cfg, "view", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archivo de datos no encontrado")
}

func TestConsolidateAndView(t *testing.T) {
	cfg, dir := writeConfig(t)
	writeReport(t, dir, "report_2025-10-07_06-00.csv",
		report.MetricsRecord{URL: "/a/", QueryDate: "2025-10-06", Metrics: report.Metrics{Views: 10, Sessions: 5}, DataFound: true},
		report.MetricsRecord{URL: "/blog/post/", QueryDate: "2025-10-06", Metrics: report.Metrics{Views: 3, Sessions: 2}, DataFound: true},
	)

	out, err := execute(t, cfg, "consolidate")
	require.NoError(t, err)
	assert.Contains(t, out, "Ejecuciones: 1")
	assert.Contains(t, out, "URLs únicas: 2")

	out, err = execute(t, cfg, "view", "urls")
	require.NoError(t, err)
	var urls struct {
		Total int `json:"total"`
		URLs  []struct {
			URL         string `json:"url"`
			TotalVistas int64  `json:"totalVistas"`
		} `json:"urls"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &urls))
	assert.Equal(t, 2, urls.Total)
	assert.Equal(t, "/a/", urls.URLs[0].URL)
	assert.Equal(t, int64(10), urls.URLs[0].TotalVistas)

	out, err = execute(t, cfg, "view", "execution", "2025-10-07_06-00")
	require.NoError(t, err)
	assert.Contains(t, out, `"urlsConDatos": 2`)

	_, err = execute(t, cfg, "view", "execution", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2025-10-07_06-00")

	out, err = execute(t, cfg, "view", "url", "BLOG")
	require.NoError(t, err)
	assert.Contains(t, out, `"url": "/blog/post/"`)

	_, err = execute(t, cfg, "view", "url", "zzz")
	assert.Error(t, err)
}

func TestConsolidateSingleFile(t *testing.T) {
	cfg, dir := writeConfig(t)
	writeReport(t, dir, "report_2025-10-07_00-00.csv",
		report.MetricsRecord{URL: "/a/", QueryDate: "2025-10-06", DataFound: false})
	writeReport(t, dir, "report_2025-10-07_06-00.csv",
		report.MetricsRecord{URL: "/a/", QueryDate: "2025-10-06", Metrics: report.Metrics{Views: 4}, DataFound: true})

	out, err := execute(t, cfg, "consolidate", "--file", filepath.Join(dir, "data", "report_2025-10-07_06-00.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "Ejecuciones: 1")

	out, err = execute(t, cfg, "view", "executions")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "2025-10-07_06-00"`)
	assert.NotContains(t, out, `"id": "2025-10-07_00-00"`)
}

func TestRunFailsPreflight(t *testing.T) {
	cfg, dir := writeConfig(t)

	_, err := execute(t, cfg, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GA4 configuration")

	logs, err := filepath.Glob(filepath.Join(dir, "logs", "ga4_report_*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
