package report

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
)

// CSV column titles, in file order.
const (
	ColURL             = "URL"
	ColQueryDate       = "Fecha consulta"
	ColViews           = "Vistas página"
	ColSessions        = "Sesiones"
	ColActiveUsers     = "Usuarios activos"
	ColNewUsers        = "Usuarios nuevos"
	ColEngagedSessions = "Sesiones comprometidas"
	ColEngagementRate  = "Tasa compromiso (%)"
	ColAvgDuration     = "Duración prom. (s)"
	ColBounceRate      = "Tasa rebote (%)"
	ColDataFound       = "Datos encontrados"
	ColBreakdown       = "Desglose por fuente"
	ColWarnings        = "Advertencias"
	ColInsights        = "Insights"
)

// Header is the fixed CSV header.
var Header = []string{
	ColURL, ColQueryDate, ColViews, ColSessions, ColActiveUsers, ColNewUsers,
	ColEngagedSessions, ColEngagementRate, ColAvgDuration, ColBounceRate,
	ColDataFound, ColBreakdown, ColWarnings, ColInsights,
}

// Validation messages attached to records.
const (
	WarnViewsWithoutSessions = "⚠️ Hay vistas pero no sesiones - posible inconsistencia temporal"
	WarnBounceAbove100       = "⚠️ Tasa de rebote > 100% - error de cálculo"
	WarnBounceNegative       = "⚠️ Tasa de rebote negativa - error de datos"
	InsightMultipleSessions  = "ℹ️ Normal: Usuarios pueden tener múltiples sesiones en la misma página"
	InsightShortSessions     = "ℹ️ Más usuarios que sesiones puede indicar sesiones muy cortas"
)

// ErrMissingURL is returned for rows without a URL cell.
var ErrMissingURL = errors.New("row has no URL")

// Validate runs the data-sanity heuristics. They never reject a record.
func Validate(m Metrics) (warnings, insights Annotations) {
	if m.Sessions > m.Views && m.Views > 0 {
		insights = append(insights, InsightMultipleSessions)
	}
	if m.Views > 0 && m.Sessions == 0 {
		warnings = append(warnings, WarnViewsWithoutSessions)
	}
	warnings = append(warnings, bounceWarnings(m.BounceRate)...)
	if m.ActiveUsers > m.Sessions && m.Sessions > 0 {
		insights = append(insights, InsightShortSessions)
	}
	return warnings, insights
}

func bounceWarnings(bounce float64) Annotations {
	switch {
	case bounce > 100:
		return Annotations{WarnBounceAbove100}
	case bounce < 0:
		return Annotations{WarnBounceNegative}
	}
	return nil
}

// ParseRow turns one CSV row, keyed by column title, into a record.
// Numeric cells parse permissively; a bad breakdown cell becomes an empty map.
func ParseRow(row map[string]string, now time.Time) (MetricsRecord, error) {
	url := strings.TrimSpace(row[ColURL])
	if url == "" {
		return MetricsRecord{}, ErrMissingURL
	}

	rec := MetricsRecord{
		URL:       url,
		QueryDate: row[ColQueryDate],
		Metrics: Metrics{
			Views:           nonNegative(ParseInt(row[ColViews])),
			Sessions:        nonNegative(ParseInt(row[ColSessions])),
			ActiveUsers:     nonNegative(ParseInt(row[ColActiveUsers])),
			NewUsers:        nonNegative(ParseInt(row[ColNewUsers])),
			EngagedSessions: nonNegative(ParseInt(row[ColEngagedSessions])),
			EngagementRate:  ParseFloat(row[ColEngagementRate]),
			AvgDuration:     ParseFloat(row[ColAvgDuration]),
			BounceRate:      ParseFloat(row[ColBounceRate]),
		},
		DataFound:        row[ColDataFound] == "true",
		TrafficBreakdown: map[string]TrafficSource{},
		Warnings:         SplitAnnotations(row[ColWarnings]),
		Insights:         SplitAnnotations(row[ColInsights]),
		ProcessedAt:      FormatTimestamp(now),
	}

	if raw := strings.TrimSpace(row[ColBreakdown]); raw != "" {
		var breakdown map[string]TrafficSource
		if err := json.Unmarshal([]byte(raw), &breakdown); err != nil {
			logger.Warn("unparsable traffic breakdown", "url", url, "error", err)
		} else if breakdown != nil {
			rec.TrafficBreakdown = breakdown
		}
	}

	for _, w := range bounceWarnings(rec.Metrics.BounceRate) {
		if !rec.Warnings.has(w) {
			rec.Warnings = append(rec.Warnings, w)
		}
	}

	return rec, nil
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
