package analytics

import (
	"sort"

	"gorm.io/gorm"

	"sitelens/internal/config"
	"sitelens/internal/events"
	"sitelens/internal/sessions"
)

// ActivityCell is one heatmap cell keyed by day of week (0=Sunday..6=Saturday)
// and hour of day (0..23).
type ActivityCell struct {
	DayOfWeek int   `json:"day_of_week"`
	Hour      int   `json:"hour"`
	Count     int64 `json:"count"`
}

// HourCount is an aggregated hour-of-day total summed across all days.
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// DayCount is an aggregated day-of-week total summed across all hours.
type DayCount struct {
	DayOfWeek int   `json:"day_of_week"`
	Count     int64 `json:"count"`
}

// PeakTimeAnalysis reports when a project sees the most traffic. PeakHour and
// PeakDay come from the single highest-count heatmap cell; TopHours and
// TopDays come from aggregated sums. The two notions can disagree for the
// same dataset, and that divergence is preserved as-is.
type PeakTimeAnalysis struct {
	PeakHour int         `json:"peak_hour"`
	PeakDay  int         `json:"peak_day"`
	TopHours []HourCount `json:"top_hours"`
	TopDays  []DayCount  `json:"top_days"`
}

// ScrollDepthBucket counts events at one discrete scroll depth value.
type ScrollDepthBucket struct {
	Depth int   `json:"depth"`
	Count int64 `json:"count"`
}

// VisitSummary is one row of the report's recent-visits list.
type VisitSummary struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
	Country   string `json:"country"`
	Timestamp string `json:"timestamp"`
}

// ProjectReport is the full report surface for a project window. Ephemeral:
// recomputed per call, never stored.
type ProjectReport struct {
	TotalViews         int64   `json:"total_views"`
	UniqueVisitors     int64   `json:"unique_visitors"`
	TotalSessions      int64   `json:"total_sessions"`
	BounceRate         float64 `json:"bounce_rate"`
	ConversionRate     float64 `json:"conversion_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration"` // seconds, heartbeat-estimated

	TopPages     []MetricCountResult `json:"top_pages"`
	TopReferrers []MetricCountResult `json:"top_referrers"`
	TopCountries []MetricCountResult `json:"top_countries"`
	TopRegions   []MetricCountResult `json:"top_regions"`
	TopBrowsers  []MetricCountResult `json:"top_browsers"`
	TopOS        []MetricCountResult `json:"top_os"`
	TopDevices   []MetricCountResult `json:"top_devices"`

	UTMSources   []MetricCountResult `json:"utm_sources"`
	UTMMediums   []MetricCountResult `json:"utm_mediums"`
	UTMCampaigns []MetricCountResult `json:"utm_campaigns"`

	EntryPages []MetricCountResult `json:"entry_pages"`
	ExitPages  []MetricCountResult `json:"exit_pages"`

	OutboundLinks []MetricCountResult `json:"outbound_links"`
	Downloads     []MetricCountResult `json:"downloads"`

	ScrollDepths    []ScrollDepthBucket `json:"scroll_depths"`
	ActivityHeatmap []ActivityCell      `json:"activity_heatmap"`
	PeakTimes       *PeakTimeAnalysis   `json:"peak_times"`
	LastVisits      []VisitSummary      `json:"last_visits"`
}

// BuildProjectReport assembles the full report for a project window.
func BuildProjectReport(db *gorm.DB, params ProjectScopedQueryParams) (*ProjectReport, error) {
	evts, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}

	heartbeatInterval := config.GetConfig().HeartbeatIntervalSeconds
	return BuildReportFromEvents(evts, params.Limit, heartbeatInterval), nil
}

// BuildReportFromEvents computes the report purely in memory over an
// already-fetched window of events.
func BuildReportFromEvents(evts []events.Event, limit int, heartbeatIntervalSeconds int) *ProjectReport {
	if limit <= 0 {
		limit = DefaultBreakdownLimit
	}

	sess := sessions.Reconstruct(evts)
	heatmap := buildHeatmap(evts)

	report := &ProjectReport{
		TotalViews:         pageViewCount(evts),
		UniqueVisitors:     distinctSessionCount(evts),
		TotalSessions:      int64(len(sess)),
		BounceRate:         sessions.BounceRate(sess),
		ConversionRate:     sessionConversionRate(sess),
		AvgSessionDuration: avgSessionDuration(sess, heartbeatIntervalSeconds),

		TopPages:     breakdownBy(evts, isPageView, func(e *events.Event) string { return e.Path }, limit, false),
		TopReferrers: breakdownBy(evts, isPageView, func(e *events.Event) string { return e.Referrer }, limit, false),
		TopCountries: normalizeCountryLabels(
			breakdownBy(evts, isPageView, func(e *events.Event) string { return e.Country }, limit, false)),
		TopRegions: breakdownBy(evts, isPageView, func(e *events.Event) string { return e.Region }, limit, true),
		TopBrowsers: normalizeTitleLabels(
			breakdownBy(evts, isPageView, func(e *events.Event) string { return e.Browser }, limit, false)),
		TopOS: breakdownBy(evts, isPageView, func(e *events.Event) string { return e.OS }, limit, false),
		TopDevices: normalizeTitleLabels(
			breakdownBy(evts, isPageView, func(e *events.Event) string { return e.Device }, limit, false)),

		UTMSources:   breakdownBy(evts, isPageView, func(e *events.Event) string { return e.UTMSource }, limit, true),
		UTMMediums:   breakdownBy(evts, isPageView, func(e *events.Event) string { return e.UTMMedium }, limit, true),
		UTMCampaigns: breakdownBy(evts, isPageView, func(e *events.Event) string { return e.UTMCampaign }, limit, true),

		EntryPages: sessionPathBreakdown(sess, (*sessions.Session).EntryPath, limit),
		ExitPages:  sessionPathBreakdown(sess, (*sessions.Session).ExitPath, limit),

		OutboundLinks: breakdownBy(evts,
			func(e *events.Event) bool { return e.EventType == events.EventTypeOutbound },
			func(e *events.Event) string { return e.TargetURL }, limit, false),
		Downloads: breakdownBy(evts,
			func(e *events.Event) bool { return e.EventType == events.EventTypeDownload },
			func(e *events.Event) string { return e.TargetURL }, limit, false),

		ScrollDepths:    scrollDepthDistribution(evts),
		ActivityHeatmap: heatmap,
		PeakTimes:       peakTimesFromHeatmap(heatmap),
		LastVisits:      lastVisits(evts, limit),
	}

	return report
}

func isPageView(e *events.Event) bool {
	return e.IsPageView()
}

// breakdownBy groups matching events by a dimension key, counts occurrences,
// and returns the top entries sorted descending by count (name ascending on
// ties, for stable output). Empty values label as "Unknown" unless the
// dimension excludes them entirely.
func breakdownBy(evts []events.Event, include func(*events.Event) bool, key func(*events.Event) string, limit int, excludeUnknown bool) []MetricCountResult {
	counts := make(map[string]int64)
	for i := range evts {
		if !include(&evts[i]) {
			continue
		}
		k := key(&evts[i])
		if k == "" {
			if excludeUnknown {
				continue
			}
			k = events.UnknownLabel
		}
		counts[k]++
	}

	return topCounts(counts, limit)
}

func topCounts(counts map[string]int64, limit int) []MetricCountResult {
	results := make([]MetricCountResult, 0, len(counts))
	for name, count := range counts {
		results = append(results, MetricCountResult{Name: name, Count: count})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Count == results[j].Count {
			return results[i].Name < results[j].Name
		}
		return results[i].Count > results[j].Count
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// sessionPathBreakdown counts sessions by a per-session path (entry or exit).
// Sessions without any page view contribute nothing.
func sessionPathBreakdown(sess []sessions.Session, path func(*sessions.Session) string, limit int) []MetricCountResult {
	counts := make(map[string]int64)
	for i := range sess {
		if p := path(&sess[i]); p != "" {
			counts[p]++
		}
	}
	return topCounts(counts, limit)
}

// sessionConversionRate is the report-level conversion rate: sessions with at
// least one custom event over total sessions.
func sessionConversionRate(sess []sessions.Session) float64 {
	if len(sess) == 0 {
		return 0.0
	}

	converted := 0
	for i := range sess {
		if sess[i].HasCustomEvent() {
			converted++
		}
	}
	return float64(converted) / float64(len(sess)) * 100
}

func avgSessionDuration(sess []sessions.Session, heartbeatIntervalSeconds int) float64 {
	if len(sess) == 0 {
		return 0.0
	}

	var total float64
	for i := range sess {
		total += sess[i].DurationEstimate(heartbeatIntervalSeconds).Seconds()
	}
	return total / float64(len(sess))
}

// buildHeatmap counts all events into (day of week, hour of day) cells.
// Only populated cells are returned, ordered by day then hour.
func buildHeatmap(evts []events.Event) []ActivityCell {
	counts := make(map[[2]int]int64)
	for i := range evts {
		ts := evts[i].Timestamp.UTC()
		counts[[2]int{int(ts.Weekday()), ts.Hour()}]++
	}

	cells := make([]ActivityCell, 0, len(counts))
	for key, count := range counts {
		cells = append(cells, ActivityCell{DayOfWeek: key[0], Hour: key[1], Count: count})
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].DayOfWeek == cells[j].DayOfWeek {
			return cells[i].Hour < cells[j].Hour
		}
		return cells[i].DayOfWeek < cells[j].DayOfWeek
	})
	return cells
}

// peakTimesFromHeatmap derives the peak-time analysis. The peak cell is the
// single highest-count cell; the top lists are aggregated sums per hour and
// per day, which may name different winners than the peak cell.
func peakTimesFromHeatmap(cells []ActivityCell) *PeakTimeAnalysis {
	analysis := &PeakTimeAnalysis{
		TopHours: []HourCount{},
		TopDays:  []DayCount{},
	}
	if len(cells) == 0 {
		return analysis
	}

	hourTotals := make(map[int]int64)
	dayTotals := make(map[int]int64)
	peak := cells[0]

	for _, cell := range cells {
		hourTotals[cell.Hour] += cell.Count
		dayTotals[cell.DayOfWeek] += cell.Count
		if cell.Count > peak.Count {
			peak = cell
		}
	}

	analysis.PeakHour = peak.Hour
	analysis.PeakDay = peak.DayOfWeek

	hours := make([]HourCount, 0, len(hourTotals))
	for hour, count := range hourTotals {
		hours = append(hours, HourCount{Hour: hour, Count: count})
	}
	sort.Slice(hours, func(i, j int) bool {
		if hours[i].Count == hours[j].Count {
			return hours[i].Hour < hours[j].Hour
		}
		return hours[i].Count > hours[j].Count
	})
	if len(hours) > 5 {
		hours = hours[:5]
	}
	analysis.TopHours = hours

	days := make([]DayCount, 0, len(dayTotals))
	for day, count := range dayTotals {
		days = append(days, DayCount{DayOfWeek: day, Count: count})
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].Count == days[j].Count {
			return days[i].DayOfWeek < days[j].DayOfWeek
		}
		return days[i].Count > days[j].Count
	})
	if len(days) > 3 {
		days = days[:3]
	}
	analysis.TopDays = days

	return analysis
}

// scrollDepthDistribution groups scroll events by their discrete depth value,
// ascending.
func scrollDepthDistribution(evts []events.Event) []ScrollDepthBucket {
	counts := make(map[int]int64)
	for i := range evts {
		if evts[i].EventType == events.EventTypeScroll && evts[i].ScrollDepth != nil {
			counts[*evts[i].ScrollDepth]++
		}
	}

	buckets := make([]ScrollDepthBucket, 0, len(counts))
	for depth, count := range counts {
		buckets = append(buckets, ScrollDepthBucket{Depth: depth, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Depth < buckets[j].Depth
	})
	return buckets
}

// lastVisits returns the most recent page views, newest first.
func lastVisits(evts []events.Event, limit int) []VisitSummary {
	var views []events.Event
	for i := range evts {
		if evts[i].IsPageView() {
			views = append(views, evts[i])
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Timestamp.After(views[j].Timestamp)
	})
	if len(views) > limit {
		views = views[:limit]
	}

	visits := make([]VisitSummary, len(views))
	for i, v := range views {
		country := v.Country
		if country == "" {
			country = events.UnknownLabel
		}
		visits[i] = VisitSummary{
			SessionID: v.SessionID,
			Path:      v.Path,
			Referrer:  v.Referrer,
			Country:   country,
			Timestamp: v.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return visits
}
