package analytics

import (
	"time"

	"gorm.io/gorm"

	"sitelens/internal/events"
	"sitelens/internal/timeframe"
)

// TimeSeriesPoint is one bucket of the traffic time series.
type TimeSeriesPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	Views          int64     `json:"views"`
	UniqueVisitors int64     `json:"unique_visitors"`
}

// TimeSeriesInTimeFrame buckets the window's events into hour/day/week slots
// with page view and distinct-visitor counts. Every bucket in the window is
// present, zero-filled when empty.
func TimeSeriesInTimeFrame(db *gorm.DB, params ProjectScopedQueryParams) ([]TimeSeriesPoint, error) {
	evts, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}

	return BucketTimeSeries(evts, params.TimeFrame), nil
}

// BucketTimeSeries computes the time series purely in memory.
func BucketTimeSeries(evts []events.Event, tf *timeframe.TimeFrame) []TimeSeriesPoint {
	type bucketAccumulator struct {
		views    int64
		visitors map[string]struct{}
	}

	buckets := make(map[time.Time]*bucketAccumulator)
	for i := range evts {
		key := tf.BucketFor(evts[i].Timestamp)
		acc, ok := buckets[key]
		if !ok {
			acc = &bucketAccumulator{visitors: make(map[string]struct{})}
			buckets[key] = acc
		}
		if evts[i].IsPageView() {
			acc.views++
		}
		acc.visitors[evts[i].SessionID] = struct{}{}
	}

	starts := tf.BucketStarts()
	points := make([]TimeSeriesPoint, len(starts))
	for i, start := range starts {
		points[i] = TimeSeriesPoint{Timestamp: start}
		if acc, ok := buckets[start]; ok {
			points[i].Views = acc.views
			points[i].UniqueVisitors = int64(len(acc.visitors))
		}
	}
	return points
}
