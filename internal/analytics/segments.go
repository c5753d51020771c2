package analytics

import (
	"log/slog"

	"gorm.io/gorm"

	"sitelens/internal/events"
	"sitelens/internal/segments"
	"sitelens/internal/sessions"
)

// SegmentAnalysis is a project report restricted to the audience a segment's
// filter chain selects.
type SegmentAnalysis struct {
	SegmentID      uint                `json:"segment_id"`
	MatchingEvents int64               `json:"matching_events"`
	TotalViews     int64               `json:"total_views"`
	UniqueVisitors int64               `json:"unique_visitors"`
	BounceRate     float64             `json:"bounce_rate"`
	TopPages       []MetricCountResult `json:"top_pages"`
}

// AnalyzeSegment loads the segment scoped by project, filters the window's
// events through its chain, and reports on the matching subset. A segment
// whose stored filters fail to decode degrades to an empty chain, which
// matches every event.
func AnalyzeSegment(db *gorm.DB, params ProjectScopedQueryParams, segmentID uint, logger *slog.Logger) (*SegmentAnalysis, error) {
	segment, err := segments.GetSegmentOrNotFound(db, params.ProjectID, segmentID)
	if err != nil {
		return nil, err
	}

	evts, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}

	filters := segment.DecodedFilters(logger)
	matching := FilterEvents(evts, filters)

	sess := sessions.Reconstruct(matching)
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultBreakdownLimit
	}

	return &SegmentAnalysis{
		SegmentID:      segment.ID,
		MatchingEvents: int64(len(matching)),
		TotalViews:     pageViewCount(matching),
		UniqueVisitors: distinctSessionCount(matching),
		BounceRate:     sessions.BounceRate(sess),
		TopPages:       breakdownBy(matching, isPageView, func(e *events.Event) string { return e.Path }, limit, false),
	}, nil
}

// FilterEvents keeps the events satisfying the filter chain. An empty chain
// keeps everything.
func FilterEvents(evts []events.Event, filters []segments.Filter) []events.Event {
	matching := make([]events.Event, 0, len(evts))
	for i := range evts {
		if segments.EvaluateChain(filters, &evts[i]) {
			matching = append(matching, evts[i])
		}
	}
	return matching
}
