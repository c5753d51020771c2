// Package timeframe resolves dashboard range filters into concrete query
// windows and provides the bucketing used by time-series reports.
//
// A filter keyword ("24h", "3d", "7d", "30d", "365d") maps to a window ending
// at call time; anything unrecognized falls back to 7 days rather than
// erroring. The previous period is always the contiguous, equal-length window
// immediately before the current one.
package timeframe

import (
	"fmt"
	"time"
)

// BucketSize determines the granularity of time-series aggregation.
type BucketSize string

const (
	BucketSizeHour BucketSize = "hour"
	BucketSizeDay  BucketSize = "day"
	BucketSizeWeek BucketSize = "week"
)

// Range filter keywords accepted from the dashboard layer.
const (
	Filter24Hours  = "24h"
	Filter3Days    = "3d"
	Filter7Days    = "7d"
	Filter30Days   = "30d"
	Filter365Days  = "365d"
	DefaultFilter  = Filter7Days
	CalendarDays   = 365
	HoursPerDay    = 24
	DaysPerWeek    = 7
)

// TimeProvider abstracts the clock so period resolution is testable.
// "Now" is captured once per engine call.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock in UTC.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// TimeFrame represents a period between two points in time.
type TimeFrame struct {
	From       time.Time
	To         time.Time
	Filter     string
	BucketSize BucketSize
}

// filterDuration maps a range filter keyword to its window length.
// Unrecognized keywords silently resolve to the 7-day default.
func filterDuration(filter string) time.Duration {
	switch filter {
	case Filter24Hours:
		return HoursPerDay * time.Hour
	case Filter3Days:
		return 3 * HoursPerDay * time.Hour
	case Filter7Days:
		return 7 * HoursPerDay * time.Hour
	case Filter30Days:
		return 30 * HoursPerDay * time.Hour
	case Filter365Days:
		return CalendarDays * HoursPerDay * time.Hour
	default:
		return 7 * HoursPerDay * time.Hour
	}
}

// BucketForFilter picks the aggregation granularity for a range filter:
// hourly for a single day, daily up to a month, weekly for a year.
func BucketForFilter(filter string) BucketSize {
	switch filter {
	case Filter24Hours:
		return BucketSizeHour
	case Filter365Days:
		return BucketSizeWeek
	default:
		return BucketSizeDay
	}
}

// CurrentPeriod resolves a filter keyword into the current comparison window
// ending at now.
func CurrentPeriod(filter string, now time.Time) (time.Time, time.Time) {
	return now.Add(-filterDuration(filter)), now
}

// PreviousPeriod resolves the contiguous, equal-length window immediately
// preceding the current one: its end equals the current window's start.
func PreviousPeriod(filter string, now time.Time) (time.Time, time.Time) {
	currentStart, currentEnd := CurrentPeriod(filter, now)
	duration := currentEnd.Sub(currentStart)
	return currentStart.Add(-duration), currentStart
}

// NewTimeFrameFromFilter builds the current-period TimeFrame for a filter.
func NewTimeFrameFromFilter(filter string, provider TimeProvider) *TimeFrame {
	if provider == nil {
		provider = &DefaultTimeProvider{}
	}
	now := provider.Now()
	from, to := CurrentPeriod(filter, now)
	return &TimeFrame{
		From:       from,
		To:         to,
		Filter:     filter,
		BucketSize: BucketForFilter(filter),
	}
}

// Previous returns the TimeFrame for the window immediately preceding this
// one, with the same duration and bucket size.
func (tf *TimeFrame) Previous() *TimeFrame {
	duration := tf.To.Sub(tf.From)
	return &TimeFrame{
		From:       tf.From.Add(-duration),
		To:         tf.From,
		Filter:     tf.Filter,
		BucketSize: tf.BucketSize,
	}
}

// Duration returns the length of the window.
func (tf *TimeFrame) Duration() time.Duration {
	return tf.To.Sub(tf.From)
}

// Validate checks the window is well-formed.
func (tf *TimeFrame) Validate() error {
	if tf.From.After(tf.To) {
		return fmt.Errorf("fromTime must be before toTime")
	}
	return nil
}

// Contains reports whether t falls inside the window (inclusive bounds).
func (tf *TimeFrame) Contains(t time.Time) bool {
	return !t.Before(tf.From) && !t.After(tf.To)
}

// BucketFor truncates t to the start of its bucket. Weekly buckets start on
// Monday, matching the dashboard's week display.
func (tf *TimeFrame) BucketFor(t time.Time) time.Time {
	return truncateToBucket(t, tf.BucketSize)
}

// BucketStarts generates the ordered list of bucket start times covering the
// window, so time series always include zero-count points.
func (tf *TimeFrame) BucketStarts() []time.Time {
	starts := []time.Time{}
	current := truncateToBucket(tf.From, tf.BucketSize)

	// Cap point generation; a year of hourly buckets stays well below this.
	maxPoints := 10000
	for i := 0; i < maxPoints && !current.After(tf.To); i++ {
		starts = append(starts, current)
		current = advanceBucket(current, tf.BucketSize)
	}
	return starts
}

// CalculateTrend fits a least-squares slope over a count series. Positive
// means traffic is growing across the window.
func CalculateTrend(counts []int) float64 {
	if len(counts) < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(counts))

	for i, count := range counts {
		x := float64(i)
		y := float64(count)

		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	return (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
}

func truncateToBucket(t time.Time, bucketSize BucketSize) time.Time {
	utc := t.UTC()
	year, month, day := utc.Year(), utc.Month(), utc.Day()

	switch bucketSize {
	case BucketSizeWeek:
		weekday := int(utc.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		daysToSubtract := weekday - 1
		return time.Date(year, month, day-daysToSubtract, 0, 0, 0, 0, time.UTC)
	case BucketSizeDay:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	case BucketSizeHour:
		return time.Date(year, month, day, utc.Hour(), 0, 0, 0, time.UTC)
	default:
		return utc
	}
}

func advanceBucket(t time.Time, bucketSize BucketSize) time.Time {
	switch bucketSize {
	case BucketSizeWeek:
		return t.AddDate(0, 0, DaysPerWeek)
	case BucketSizeDay:
		return t.AddDate(0, 0, 1)
	case BucketSizeHour:
		return t.Add(time.Hour)
	default:
		return t.AddDate(0, 0, 1)
	}
}
