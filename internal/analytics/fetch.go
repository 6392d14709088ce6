package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// Metric names of the primary query, in column order.
var pageMetrics = []Metric{
	{Name: "screenPageViews"},
	{Name: "sessions"},
	{Name: "averageSessionDuration"},
	{Name: "bounceRate"},
	{Name: "activeUsers"},
	{Name: "newUsers"},
	{Name: "engagedSessions"},
}

// backupLimit caps the diagnostic CONTAINS query.
const backupLimit = 5

// Reporter runs one report query.
type Reporter interface {
	RunReport(ctx context.Context, req ReportRequest) (*ReportResponse, error)
}

// Fetcher turns report queries into MetricsRecords.
type Fetcher struct {
	reporter Reporter
	loc      *time.Location
	now      func() time.Time
}

// NewFetcher creates a fetcher that reports days in loc.
func NewFetcher(r Reporter, loc *time.Location) *Fetcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Fetcher{reporter: r, loc: loc, now: time.Now}
}

// QueryDate is the day queried by a run at now: yesterday in the fetcher's timezone.
func (f *Fetcher) QueryDate(now time.Time) string {
	return now.In(f.loc).AddDate(0, 0, -1).Format("2006-01-02")
}

// FetchURL queries one page path for one day. It never fails: an API error
// becomes a zeroed record with dataFound=false and the error as a warning.
func (f *Fetcher) FetchURL(ctx context.Context, url, day string) report.MetricsRecord {
	rec := report.MetricsRecord{
		URL:              url,
		QueryDate:        day,
		TrafficBreakdown: map[string]report.TrafficSource{},
		Warnings:         report.Annotations{},
		Insights:         report.Annotations{},
		ProcessedAt:      report.FormatTimestamp(f.now()),
	}

	resp, err := f.reporter.RunReport(ctx, primaryQuery(url, day))
	if err != nil {
		logger.Warn("GA4 query failed", "url", url, "date", day, "error", err)
		rec.Warnings = report.Annotations{"Error: " + err.Error()}
		return rec
	}
	logger.Debug("GA4 response", "url", url, "rows", len(resp.Rows), "sampled", resp.Sampled())

	if len(resp.Rows) == 0 {
		logger.Warn("no GA4 data for url", "url", url, "date", day)
		f.logSimilar(ctx, url, day)
		return rec
	}

	var (
		weightedDuration, weightedBounce float64
		m                                report.Metrics
	)
	for _, row := range resp.Rows {
		source := valueAt(row.DimensionValues, 1)
		views := report.ParseInt(valueAt(row.MetricValues, 0))
		sessions := report.ParseInt(valueAt(row.MetricValues, 1))
		duration := report.ParseFloat(valueAt(row.MetricValues, 2))
		bounce := report.ParseFloat(valueAt(row.MetricValues, 3))
		users := report.ParseInt(valueAt(row.MetricValues, 4))
		newUsers := report.ParseInt(valueAt(row.MetricValues, 5))
		engaged := report.ParseInt(valueAt(row.MetricValues, 6))

		m.Views += views
		m.Sessions += sessions
		m.ActiveUsers += users
		m.NewUsers += newUsers
		m.EngagedSessions += engaged
		if sessions > 0 {
			weightedDuration += duration * float64(sessions)
			weightedBounce += bounce * float64(sessions)
		}

		rec.TrafficBreakdown[source] = report.TrafficSource{
			Views:    views,
			Sessions: sessions,
			Users:    users,
			Duration: report.Decimal(duration),
			Bounce:   report.Decimal(bounce * 100),
		}
	}

	if m.Sessions > 0 {
		s := float64(m.Sessions)
		m.AvgDuration = weightedDuration / s
		m.BounceRate = weightedBounce / s * 100
		m.EngagementRate = float64(m.EngagedSessions) / s * 100
	}

	rec.Metrics = m
	rec.DataFound = true
	rec.Warnings, rec.Insights = report.Validate(m)
	if rec.Warnings == nil {
		rec.Warnings = report.Annotations{}
	}
	if rec.Insights == nil {
		rec.Insights = report.Annotations{}
	}

	logger.Info("GA4 data processed", "url", url, "views", m.Views, "sessions", m.Sessions,
		"users", m.ActiveUsers, "warnings", len(rec.Warnings), "insights", len(rec.Insights))
	return rec
}

// logSimilar runs a CONTAINS query so the log shows which paths GA4 does know.
func (f *Fetcher) logSimilar(ctx context.Context, url, day string) {
	resp, err := f.reporter.RunReport(ctx, backupQuery(url, day))
	if err != nil {
		logger.Debug("similar-path query failed", "url", url, "error", err)
		return
	}
	if len(resp.Rows) == 0 {
		return
	}
	similar := make([]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		similar = append(similar, valueAt(row.DimensionValues, 0)+" ("+valueAt(row.MetricValues, 0)+" views)")
	}
	logger.Info("similar GA4 paths", "url", url, "paths", similar)
}

func primaryQuery(url, day string) ReportRequest {
	return ReportRequest{
		DateRanges: []DateRange{{StartDate: day, EndDate: day}},
		Dimensions: []Dimension{{Name: "pagePath"}, {Name: "sessionSource"}},
		Metrics:    pageMetrics,
		DimensionFilter: &FilterExpression{Filter: &Filter{
			FieldName:    "pagePath",
			StringFilter: &StringFilter{MatchType: "EXACT", Value: url},
		}},
		KeepEmptyRows:       true,
		ReturnPropertyQuota: true,
		OrderBys:            []OrderBy{{Metric: &MetricOrderBy{MetricName: "screenPageViews"}, Desc: true}},
	}
}

func backupQuery(url, day string) ReportRequest {
	return ReportRequest{
		DateRanges: []DateRange{{StartDate: day, EndDate: day}},
		Dimensions: []Dimension{{Name: "pagePath"}},
		Metrics:    []Metric{{Name: "screenPageViews"}},
		DimensionFilter: &FilterExpression{Filter: &Filter{
			FieldName:    "pagePath",
			StringFilter: &StringFilter{MatchType: "CONTAINS", Value: strings.Trim(url, "/")},
		}},
		Limit: backupLimit,
	}
}

func valueAt(vals []Value, i int) string {
	if i < len(vals) {
		return vals[i].Value
	}
	return ""
}
