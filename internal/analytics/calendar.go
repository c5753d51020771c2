package analytics

import (
	"time"

	"gorm.io/gorm"

	"sitelens/internal/events"
	"sitelens/internal/timeframe"
)

// ContributionDay is one day of the calendar with its quartile-relative
// intensity level.
type ContributionDay struct {
	Date           string `json:"date"` // YYYY-MM-DD
	Visits         int64  `json:"visits"`
	UniqueVisitors int64  `json:"unique_visitors"`
	Level          int    `json:"level"` // 0..4
}

// ContributionCalendar covers the trailing 365 days ending today.
type ContributionCalendar struct {
	Days      []ContributionDay `json:"days"`
	MaxVisits int64             `json:"max_visits"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
}

// BuildContributionCalendar builds the 365-day calendar for a project. Every
// day in the range appears, zero-filled when nothing happened.
func BuildContributionCalendar(db *gorm.DB, projectID uint, provider timeframe.TimeProvider) (*ContributionCalendar, error) {
	now := provider.Now()
	end := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	start := end.AddDate(0, 0, -timeframe.CalendarDays)

	evts, err := events.InRange(db, projectID, start, end)
	if err != nil {
		return nil, err
	}

	return BuildCalendarFromEvents(evts, start, timeframe.CalendarDays), nil
}

// BuildCalendarFromEvents computes the calendar purely in memory over a
// fixed day range starting at a UTC midnight.
func BuildCalendarFromEvents(evts []events.Event, start time.Time, days int) *ContributionCalendar {
	type dayAccumulator struct {
		visits   int64
		visitors map[string]struct{}
	}

	byDate := make(map[string]*dayAccumulator)
	for i := range evts {
		if !evts[i].IsPageView() {
			continue
		}
		date := evts[i].Timestamp.UTC().Format("2006-01-02")
		acc, ok := byDate[date]
		if !ok {
			acc = &dayAccumulator{visitors: make(map[string]struct{})}
			byDate[date] = acc
		}
		acc.visits++
		acc.visitors[evts[i].SessionID] = struct{}{}
	}

	var maxVisits int64
	for _, acc := range byDate {
		if acc.visits > maxVisits {
			maxVisits = acc.visits
		}
	}

	calendar := &ContributionCalendar{
		Days:      make([]ContributionDay, days),
		MaxVisits: maxVisits,
		StartDate: start.Format("2006-01-02"),
		EndDate:   start.AddDate(0, 0, days-1).Format("2006-01-02"),
	}

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		day := ContributionDay{Date: date}
		if acc, ok := byDate[date]; ok {
			day.Visits = acc.visits
			day.UniqueVisitors = int64(len(acc.visitors))
		}
		day.Level = IntensityLevel(day.Visits, maxVisits)
		calendar.Days[i] = day
	}

	return calendar
}

// IntensityLevel bins a day's visits against the period maximum into levels
// 0 through 4. Thresholds are strict, so a day exactly at a quartile boundary
// lands in the higher level, and only zero-visit days get level 0.
func IntensityLevel(visits, maxVisits int64) int {
	if visits == 0 {
		return 0
	}
	if maxVisits == 0 {
		return 0
	}

	ratio := float64(visits) / float64(maxVisits)
	switch {
	case ratio < 0.25:
		return 1
	case ratio < 0.50:
		return 2
	case ratio < 0.75:
		return 3
	default:
		return 4
	}
}
