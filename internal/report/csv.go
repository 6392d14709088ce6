package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
)

// ReadCSV parses a report file. Rows that cannot be parsed are logged and
// skipped; only an unreadable header fails the whole file. An empty file
// yields no records.
func ReadCSV(r io.Reader, now time.Time) ([]MetricsRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []MetricsRecord
	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("skipping malformed CSV row", "line", parseErr.Line, "error", err)
				continue
			}
			return records, fmt.Errorf("reading CSV: %w", err)
		}
		if len(fields) != len(header) {
			logger.Warn("skipping CSV row with wrong field count", "line", line, "fields", len(fields), "expected", len(header))
			continue
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = fields[i]
		}
		rec, err := ParseRow(row, now)
		if err != nil {
			logger.Warn("skipping CSV row", "line", line, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteCSV writes the header followed by one row per record.
func WriteCSV(w io.Writer, records []MetricsRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		row, err := encodeRow(rec)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", rec.URL, err)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func encodeRow(rec MetricsRecord) ([]string, error) {
	breakdown := rec.TrafficBreakdown
	if breakdown == nil {
		breakdown = map[string]TrafficSource{}
	}
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return nil, err
	}

	m := rec.Metrics
	return []string{
		rec.URL,
		rec.QueryDate,
		strconv.FormatInt(m.Views, 10),
		strconv.FormatInt(m.Sessions, 10),
		strconv.FormatInt(m.ActiveUsers, 10),
		strconv.FormatInt(m.NewUsers, 10),
		strconv.FormatInt(m.EngagedSessions, 10),
		formatRate(m.EngagementRate),
		formatRate(m.AvgDuration),
		formatRate(m.BounceRate),
		strconv.FormatBool(rec.DataFound),
		string(raw),
		rec.Warnings.Join(),
		rec.Insights.Join(),
	}, nil
}

func formatRate(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
