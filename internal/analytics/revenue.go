package analytics

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gorm.io/gorm"

	"sitelens/internal/events"
	"sitelens/internal/sessions"
)

// Extractor pulls a revenue amount out of a custom event's raw properties
// blob. The second return is false when the blob carries no parseable amount.
type Extractor interface {
	Extract(properties string) (float64, bool)
}

// revenuePattern matches a revenue amount in a properties blob regardless of
// whether the amount was serialized as a JSON number or a quoted string.
const revenuePattern = `"revenue"\s*:\s*"?(-?\d+(?:\.\d+)?)"?`

// RegexCache caches compiled patterns so hot paths skip recompilation.
type RegexCache struct {
	mu       sync.RWMutex
	patterns map[string]*pcre.Regexp
}

// NewRegexCache creates an empty cache.
func NewRegexCache() *RegexCache {
	return &RegexCache{patterns: make(map[string]*pcre.Regexp)}
}

// Get returns the compiled regex for a pattern, compiling on first use.
func (c *RegexCache) Get(pattern string) (*pcre.Regexp, error) {
	c.mu.RLock()
	re, ok := c.patterns[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.patterns[pattern]; ok {
		return re, nil
	}

	re, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.patterns[pattern] = re
	return re, nil
}

// RegexExtractor is the default Extractor, backed by a shared pattern cache.
type RegexExtractor struct {
	cache *RegexCache
}

// NewRegexExtractor creates an extractor with its own cache.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{cache: NewRegexCache()}
}

// Extract scans the properties blob for a revenue amount. Unparseable blobs
// report false and are skipped by callers, never treated as zero revenue.
func (x *RegexExtractor) Extract(properties string) (float64, bool) {
	if properties == "" {
		return 0, false
	}

	re, err := x.cache.Get(revenuePattern)
	if err != nil {
		return 0, false
	}

	match := re.FindStringSubmatch(properties)
	if len(match) < 2 {
		return 0, false
	}

	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

var defaultExtractor = NewRegexExtractor()

// RevenueStats summarizes a window's revenue against its previous period.
type RevenueStats struct {
	TotalRevenue      float64  `json:"total_revenue"`
	Transactions      int64    `json:"transactions"`
	AvgOrderValue     float64  `json:"avg_order_value"`
	PreviousRevenue   float64  `json:"previous_revenue"`
	RevenueChange     *float64 `json:"revenue_change"`
	RevenuePerVisitor float64  `json:"revenue_per_visitor"`
}

// RevenueByEvent breaks revenue down per custom event name.
type RevenueByEvent struct {
	EventName    string  `json:"event_name"`
	Revenue      float64 `json:"revenue"`
	Transactions int64   `json:"transactions"`
}

// RevenueAttribution credits revenue to a session's first-touch source.
type RevenueAttribution struct {
	Source         string  `json:"source"`
	Revenue        float64 `json:"revenue"`
	Transactions   int64   `json:"transactions"`
	Sessions       int64   `json:"sessions"`
	ConversionRate float64 `json:"conversion_rate"`
}

// RevenueStatsInTimeFrame sums revenue carried by the window's custom events
// and compares it to the immediately preceding window.
func RevenueStatsInTimeFrame(db *gorm.DB, params ProjectScopedQueryParams) (*RevenueStats, error) {
	evts, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}

	previousFrame := params.TimeFrame.Previous()
	previousEvents, err := events.InRange(db, params.ProjectID, previousFrame.From, previousFrame.To)
	if err != nil {
		return nil, err
	}

	return ComputeRevenueStats(evts, previousEvents, defaultExtractor), nil
}

// ComputeRevenueStats computes the stats purely in memory.
func ComputeRevenueStats(current, previous []events.Event, extractor Extractor) *RevenueStats {
	total, transactions := sumRevenue(current, extractor)
	previousTotal, _ := sumRevenue(previous, extractor)

	stats := &RevenueStats{
		TotalRevenue:    total,
		Transactions:    transactions,
		PreviousRevenue: previousTotal,
		RevenueChange:   PercentageChange(total, previousTotal),
	}
	if transactions > 0 {
		stats.AvgOrderValue = total / float64(transactions)
	}
	if visitors := pageViewVisitorCount(current); visitors > 0 {
		stats.RevenuePerVisitor = total / float64(visitors)
	}
	return stats
}

// sumRevenue totals the revenue carried by custom events, counting one
// transaction per revenue-bearing event.
func sumRevenue(evts []events.Event, extractor Extractor) (float64, int64) {
	var total float64
	var transactions int64
	for i := range evts {
		if amount, ok := eventRevenue(&evts[i], extractor); ok {
			total += amount
			transactions++
		}
	}
	return total, transactions
}

// pageViewVisitorCount counts distinct sessions with at least one page view.
// Sessions that only fired custom events are not visitors for the
// revenue-per-visitor denominator.
func pageViewVisitorCount(evts []events.Event) int64 {
	seen := make(map[string]struct{})
	for i := range evts {
		if evts[i].IsPageView() {
			seen[evts[i].SessionID] = struct{}{}
		}
	}
	return int64(len(seen))
}

// RevenueByEventInTimeFrame breaks the window's revenue down by event name,
// sorted descending by revenue.
func RevenueByEventInTimeFrame(db *gorm.DB, params ProjectScopedQueryParams) ([]RevenueByEvent, error) {
	evts, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}
	return ComputeRevenueByEvent(evts, defaultExtractor), nil
}

// ComputeRevenueByEvent groups revenue-bearing custom events by name.
func ComputeRevenueByEvent(evts []events.Event, extractor Extractor) []RevenueByEvent {
	type accumulator struct {
		revenue      float64
		transactions int64
	}

	byName := make(map[string]*accumulator)
	for i := range evts {
		amount, ok := eventRevenue(&evts[i], extractor)
		if !ok {
			continue
		}
		acc, exists := byName[evts[i].EventName]
		if !exists {
			acc = &accumulator{}
			byName[evts[i].EventName] = acc
		}
		acc.revenue += amount
		acc.transactions++
	}

	results := make([]RevenueByEvent, 0, len(byName))
	for name, acc := range byName {
		results = append(results, RevenueByEvent{
			EventName:    name,
			Revenue:      acc.revenue,
			Transactions: acc.transactions,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Revenue == results[j].Revenue {
			return results[i].EventName < results[j].EventName
		}
		return results[i].Revenue > results[j].Revenue
	})
	return results
}

// RevenueAttributionInTimeFrame credits the window's revenue to first-touch
// sources, sorted descending by revenue.
func RevenueAttributionInTimeFrame(db *gorm.DB, params ProjectScopedQueryParams) ([]RevenueAttribution, error) {
	evts, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}
	return ComputeRevenueAttribution(evts, defaultExtractor), nil
}

// ComputeRevenueAttribution groups sessions by first-touch source and credits
// each source with the revenue its sessions produced. The conversion rate is
// revenue transactions over all sessions from that source, so a source whose
// sessions transact repeatedly can exceed 100.
func ComputeRevenueAttribution(evts []events.Event, extractor Extractor) []RevenueAttribution {
	sess := sessions.Reconstruct(evts)

	type accumulator struct {
		revenue      float64
		transactions int64
		sessions     int64
	}

	bySource := make(map[string]*accumulator)
	for i := range sess {
		source := firstTouchSource(&sess[i])
		acc, exists := bySource[source]
		if !exists {
			acc = &accumulator{}
			bySource[source] = acc
		}
		acc.sessions++

		var sessionRevenue float64
		var sessionTransactions int64
		for j := range sess[i].Events {
			if amount, ok := eventRevenue(&sess[i].Events[j], extractor); ok {
				sessionRevenue += amount
				sessionTransactions++
			}
		}
		acc.revenue += sessionRevenue
		acc.transactions += sessionTransactions
	}

	results := make([]RevenueAttribution, 0, len(bySource))
	for source, acc := range bySource {
		entry := RevenueAttribution{
			Source:       source,
			Revenue:      acc.revenue,
			Transactions: acc.transactions,
			Sessions:     acc.sessions,
		}
		if acc.sessions > 0 {
			entry.ConversionRate = float64(acc.transactions) / float64(acc.sessions) * 100
		}
		results = append(results, entry)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Revenue == results[j].Revenue {
			return results[i].Source < results[j].Source
		}
		return results[i].Revenue > results[j].Revenue
	})
	return results
}

func eventRevenue(e *events.Event, extractor Extractor) (float64, bool) {
	if !e.IsCustom() {
		return 0, false
	}
	return extractor.Extract(e.Properties)
}

// firstTouchSource derives a session's traffic source from its first page
// view. UTM campaign wins over UTM source, which wins over the referrer
// hostname. Sessions without a page view or without any source attribute
// are direct traffic.
func firstTouchSource(s *sessions.Session) string {
	for i := range s.Events {
		e := &s.Events[i]
		if !e.IsPageView() {
			continue
		}
		if e.UTMCampaign != "" {
			return e.UTMCampaign
		}
		if e.UTMSource != "" {
			return e.UTMSource
		}
		if e.Referrer != "" {
			return referrerHost(e.Referrer)
		}
		return events.DirectLabel
	}
	return events.DirectLabel
}

// referrerHost reduces a referrer URL to its bare hostname. Referrers stored
// as bare hostnames pass through unchanged.
func referrerHost(referrer string) string {
	host := referrer
	if u, err := url.Parse(referrer); err == nil && u.Host != "" {
		host = u.Host
	}
	return strings.TrimPrefix(host, "www.")
}
