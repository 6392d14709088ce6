package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

type fakeReporter struct {
	responses []*ReportResponse
	err       error
	requests  []ReportRequest
}

func (f *fakeReporter) RunReport(_ context.Context, req ReportRequest) (*ReportResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &ReportResponse{}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func row(source string, metrics ...string) Row {
	r := Row{DimensionValues: []Value{{Value: "/a/"}, {Value: source}}}
	for _, m := range metrics {
		r.MetricValues = append(r.MetricValues, Value{Value: m})
	}
	return r
}

func newTestFetcher(r Reporter) *Fetcher {
	f := NewFetcher(r, time.UTC)
	f.now = func() time.Time { return time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFetchURLWeightsBySessions(t *testing.T) {
	fake := &fakeReporter{responses: []*ReportResponse{{Rows: []Row{
		// views, sessions, duration, bounce, users, newUsers, engaged
		row("google", "30", "10", "40", "0.2", "8", "5", "6"),
		row("direct", "10", "30", "20", "0.6", "25", "10", "12"),
	}}}}

	rec := newTestFetcher(fake).FetchURL(context.Background(), "/a/", "2025-10-06")

	assert.True(t, rec.DataFound)
	assert.Equal(t, "2025-10-06", rec.QueryDate)
	assert.Equal(t, int64(40), rec.Metrics.Views)
	assert.Equal(t, int64(40), rec.Metrics.Sessions)
	assert.Equal(t, int64(33), rec.Metrics.ActiveUsers)
	assert.Equal(t, int64(15), rec.Metrics.NewUsers)
	assert.Equal(t, int64(18), rec.Metrics.EngagedSessions)
	assert.InDelta(t, 25.0, rec.Metrics.AvgDuration, 1e-9)
	assert.InDelta(t, 50.0, rec.Metrics.BounceRate, 1e-9)
	assert.InDelta(t, 45.0, rec.Metrics.EngagementRate, 1e-9)

	require.Contains(t, rec.TrafficBreakdown, "google")
	assert.Equal(t, int64(30), rec.TrafficBreakdown["google"].Views)
	assert.InDelta(t, 20.0, float64(rec.TrafficBreakdown["google"].Bounce), 1e-9)

	assert.Empty(t, rec.Warnings)
	assert.Empty(t, rec.Insights)
	assert.Equal(t, "2025-10-07T12:00:00.000Z", rec.ProcessedAt)
	assert.Len(t, fake.requests, 1)
}

func TestFetchURLAddsValidationNotes(t *testing.T) {
	fake := &fakeReporter{responses: []*ReportResponse{{Rows: []Row{
		row("google", "5", "10", "12", "0.5", "12", "1", "4"),
	}}}}

	rec := newTestFetcher(fake).FetchURL(context.Background(), "/a/", "2025-10-06")
	assert.Equal(t, report.Annotations{report.InsightMultipleSessions, report.InsightShortSessions}, rec.Insights)
}

func TestFetchURLNoRowsRunsBackupQuery(t *testing.T) {
	fake := &fakeReporter{responses: []*ReportResponse{
		{},
		{Rows: []Row{{DimensionValues: []Value{{Value: "/a-b/"}}, MetricValues: []Value{{Value: "3"}}}}},
	}}

	rec := newTestFetcher(fake).FetchURL(context.Background(), "/a/", "2025-10-06")

	assert.False(t, rec.DataFound)
	assert.Equal(t, report.Metrics{}, rec.Metrics)
	assert.Empty(t, rec.Warnings)
	require.Len(t, fake.requests, 2)
	assert.Equal(t, "CONTAINS", fake.requests[1].DimensionFilter.Filter.StringFilter.MatchType)
	assert.Equal(t, "a", fake.requests[1].DimensionFilter.Filter.StringFilter.Value)
	assert.Equal(t, int64(5), fake.requests[1].Limit)
}

func TestFetchURLErrorBecomesWarning(t *testing.T) {
	fake := &fakeReporter{err: errors.New("quota exhausted")}

	rec := newTestFetcher(fake).FetchURL(context.Background(), "/a/", "2025-10-06")

	assert.False(t, rec.DataFound)
	assert.Equal(t, report.Annotations{"Error: quota exhausted"}, rec.Warnings)
	assert.Empty(t, rec.TrafficBreakdown)
}

func TestQueryDateIsYesterdayInZone(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	f := NewFetcher(&fakeReporter{}, loc)

	// 03:00 UTC on the 7th is still the 6th in CST.
	now := time.Date(2025, 10, 7, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-10-05", f.QueryDate(now))
}
