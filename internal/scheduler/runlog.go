package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/osteele/liquid"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
)

const logPrefix = "ga4_report_"

const successLog = `=== REPORTE GA4 - {{ started_at }} ===
Duración: {{ duration }} segundos

=== SALIDA ESTÁNDAR ===
{% for line in output %}{{ line }}
{% endfor %}
=== ERRORES (SI LOS HAY) ===
{% assign failed = attempts | size %}{% if failed > 0 %}{% for a in attempts %}{{ a }}
{% endfor %}{% else %}Sin errores
{% endif %}
=== FINALIZADO - {{ finished_at }} ===
`

const failureLog = `=== ERROR EN REPORTE GA4 - {{ started_at }} ===
Duración: {{ duration }} segundos

=== ERROR ===
{{ error }}

=== INTENTOS ===
{% for a in attempts %}{{ a }}
{% endfor %}
=== FINALIZADO CON ERROR - {{ finished_at }} ===
`

// runLog renders and rotates the per-run log files.
type runLog struct {
	dir     string
	keep    int
	success *liquid.Template
	failure *liquid.Template
}

func newRunLog(dir string, keep int) (*runLog, error) {
	engine := liquid.NewEngine()
	success, err := engine.ParseString(successLog)
	if err != nil {
		return nil, fmt.Errorf("parsing run log template: %w", err)
	}
	failure, err := engine.ParseString(failureLog)
	if err != nil {
		return nil, fmt.Errorf("parsing run log template: %w", err)
	}
	return &runLog{dir: dir, keep: keep, success: success, failure: failure}, nil
}

// write renders the outcome into name and then rotates old logs.
func (l *runLog) write(name string, o *Outcome, output []string) (string, error) {
	bindings := map[string]any{
		"started_at":  o.StartedAt,
		"finished_at": o.FinishedAt,
		"duration":    o.DurationSeconds(),
		"output":      nonNil(output),
		"attempts":    nonNil(o.Attempts),
		"error":       o.Error,
	}
	tpl := l.success
	if !o.Success {
		tpl = l.failure
	}
	content, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("rendering run log: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("creating log dir: %w", err)
	}
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing run log: %w", err)
	}
	l.rotate()
	return path, nil
}

// rotate keeps the newest l.keep run logs by modification time.
func (l *runLog) rotate() {
	if l.keep <= 0 {
		return
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		logger.Warn("listing run logs failed", "dir", l.dir, "error", err)
		return
	}

	type logFile struct {
		name  string
		mtime int64
	}
	var files []logFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{name: name, mtime: info.ModTime().UnixNano()})
	}
	if len(files) <= l.keep {
		return
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].mtime != files[j].mtime {
			return files[i].mtime > files[j].mtime
		}
		return files[i].name > files[j].name
	})
	for _, f := range files[l.keep:] {
		if err := os.Remove(filepath.Join(l.dir, f.name)); err != nil {
			logger.Warn("removing old run log failed", "file", f.name, "error", err)
			continue
		}
		logger.Info("old run log removed", "file", f.name)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
