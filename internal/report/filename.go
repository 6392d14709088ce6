package report

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
)

var filenamePattern = regexp.MustCompile(`report_(\d{4}-\d{2}-\d{2})_(\d{2})-(\d{2})\.csv`)

// unknownPart marks date and time of a file whose name carries no run instant.
const unknownPart = "unknown"

// ExecutionInfo is the identity of a run derived from its CSV filename.
type ExecutionInfo struct {
	ID         string
	Date       string
	Time       string
	Timestamp  string
	SourceFile string
	// Degraded is set when the name did not match report_<date>_<HH>-<MM>.csv
	// and the id fell back to the bare filename.
	Degraded bool
}

// ParseFilename derives the execution id (YYYY-MM-DD_HH-MM) from a report
// filename. The embedded wall-clock time is interpreted in loc.
func ParseFilename(name string, loc *time.Location, now time.Time) ExecutionInfo {
	base := filepath.Base(name)
	if loc == nil {
		loc = time.UTC
	}

	match := filenamePattern.FindStringSubmatch(base)
	if match != nil {
		day, err := time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("%s %s:%s", match[1], match[2], match[3]), loc)
		if err == nil {
			return ExecutionInfo{
				ID:         fmt.Sprintf("%s_%s-%s", match[1], match[2], match[3]),
				Date:       match[1],
				Time:       match[2] + ":" + match[3],
				Timestamp:  FormatTimestamp(day),
				SourceFile: base,
			}
		}
	}

	logger.Warn("report filename has no run date, using degraded execution id", "file", base)
	return ExecutionInfo{
		ID:         strings.Replace(base, ".csv", "", 1),
		Date:       unknownPart,
		Time:       unknownPart,
		Timestamp:  FormatTimestamp(now),
		SourceFile: base,
		Degraded:   true,
	}
}

// ReportFilename is the CSV name for a run started at t.
func ReportFilename(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return "report_" + t.In(loc).Format("2006-01-02_15-04") + ".csv"
}

// IsReportFile reports whether name looks like a run CSV (report_*.csv).
func IsReportFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, "report_") && strings.HasSuffix(base, ".csv")
}
