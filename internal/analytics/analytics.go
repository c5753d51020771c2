// Package analytics turns a flat, append-only stream of anonymized visit
// events into time-windowed reports, ordered multi-step conversion funnels,
// boolean-filtered audience segments, and revenue attribution.
//
// The package is organized into focused modules:
//   - reports.go: full project report (breakdowns, bounce rate, heatmap, peaks)
//   - timeseries.go: bucketed views and distinct-visitor counts
//   - funnels.go: ordered multi-step session matching
//   - goals.go: single-criterion conversion counting with period comparison
//   - segments.go: audience segment evaluation and reporting
//   - revenue.go: revenue extraction, aggregation, and first-touch attribution
//   - calendar.go: 365-day contribution calendar
//   - labels.go: display label normalization for breakdown output
//
// Every entry point fetches the window's event rows once and computes purely
// in memory; the engine holds no state between calls and is safe to run
// concurrently for any mix of projects and windows. Storage errors propagate
// unchanged, never retried.
package analytics

import (
	"time"

	"gorm.io/gorm"

	"sitelens/internal/events"
	"sitelens/internal/timeframe"
)

// MetricCountResult represents a generic key-count pair for report results
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DefaultBreakdownLimit is the top-N size for report breakdowns.
const DefaultBreakdownLimit = 10

// ProjectScopedQueryParams contains common parameters for project-scoped queries
type ProjectScopedQueryParams struct {
	TimeFrame *timeframe.TimeFrame
	ProjectID uint
	Limit     int // Number of records to return per breakdown
}

// NewProjectScopedQueryParams creates a new query params object with the specified time frame and project ID
func NewProjectScopedQueryParams(tf *timeframe.TimeFrame, projectID uint) ProjectScopedQueryParams {
	// Ensure timeFrame is not nil to prevent panics
	if tf == nil {
		now := time.Now().UTC()
		tf = &timeframe.TimeFrame{
			From:       now.AddDate(0, 0, -7),
			To:         now,
			Filter:     timeframe.DefaultFilter,
			BucketSize: timeframe.BucketSizeDay,
		}
	}

	return ProjectScopedQueryParams{
		TimeFrame: tf,
		ProjectID: projectID,
		Limit:     DefaultBreakdownLimit,
	}
}

// eventsForWindow fetches the window's rows once; everything downstream is a
// pure transformation over the returned slice.
func eventsForWindow(db *gorm.DB, params ProjectScopedQueryParams) ([]events.Event, error) {
	return events.InRange(db, params.ProjectID, params.TimeFrame.From, params.TimeFrame.To)
}

// distinctSessionCount counts distinct session ids across a slice of events.
// Events carry no visitor id, so distinct sessions stand in for distinct
// visitors throughout the engine.
func distinctSessionCount(evts []events.Event) int64 {
	seen := make(map[string]struct{})
	for i := range evts {
		seen[evts[i].SessionID] = struct{}{}
	}
	return int64(len(seen))
}

// pageViewCount counts page view events.
func pageViewCount(evts []events.Event) int64 {
	var count int64
	for i := range evts {
		if evts[i].IsPageView() {
			count++
		}
	}
	return count
}
