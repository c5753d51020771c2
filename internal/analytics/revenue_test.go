package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/events"
	"sitelens/internal/testsupport"
)

var revenueBase = time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)

func TestRegexExtractor(t *testing.T) {
	extractor := NewRegexExtractor()

	tests := []struct {
		name       string
		properties string
		wantAmount float64
		wantOK     bool
	}{
		{"quoted string amount", `{"revenue":"29.99"}`, 29.99, true},
		{"numeric amount", `{"revenue":15}`, 15, true},
		{"spaced json", `{ "revenue" : 9.50 }`, 9.5, true},
		{"negative refund", `{"revenue":"-5.00"}`, -5, true},
		{"no revenue key", `{"plan":"pro"}`, 0, false},
		{"unparseable value", `{"revenue":"lots"}`, 0, false},
		{"empty blob", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok := extractor.Extract(tt.properties)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.wantAmount, amount, 0.001)
			}
		})
	}
}

func TestComputeRevenueStats_Scenario(t *testing.T) {
	current := []events.Event{
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":"29.99"}`, revenueBase),
		testsupport.CustomEvent(1, "s2", "purchase", `{"revenue":15}`, revenueBase),
		testsupport.CustomEvent(1, "s3", "purchase", `{"revenue":"broken"}`, revenueBase), // skipped
	}

	stats := ComputeRevenueStats(current, nil, NewRegexExtractor())

	assert.InDelta(t, 44.99, stats.TotalRevenue, 0.001)
	assert.Equal(t, int64(2), stats.Transactions)
	assert.InDelta(t, 22.495, stats.AvgOrderValue, 0.001)
	assert.Nil(t, stats.RevenueChange)
	// no session in the window has a page view, so there is no visitor base
	assert.Equal(t, 0.0, stats.RevenuePerVisitor)
}

func TestComputeRevenueStats_PeriodComparison(t *testing.T) {
	current := []events.Event{
		testsupport.PageView(1, "s1", "/", revenueBase),
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":100}`, revenueBase.Add(time.Minute)),
	}
	previous := []events.Event{
		testsupport.CustomEvent(1, "p1", "purchase", `{"revenue":50}`, revenueBase.AddDate(0, 0, -7)),
	}

	stats := ComputeRevenueStats(current, previous, NewRegexExtractor())

	assert.InDelta(t, 50.0, stats.PreviousRevenue, 0.001)
	if assert.NotNil(t, stats.RevenueChange) {
		assert.InDelta(t, 100.0, *stats.RevenueChange, 0.001)
	}
	assert.InDelta(t, 100.0, stats.RevenuePerVisitor, 0.001)
}

func TestComputeRevenueStats_VisitorBaseIsPageViewSessions(t *testing.T) {
	current := []events.Event{
		testsupport.PageView(1, "s1", "/", revenueBase),
		testsupport.PageView(1, "s2", "/", revenueBase),
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":90}`, revenueBase.Add(time.Minute)),
		// custom-event-only session; not part of the visitor base
		testsupport.CustomEvent(1, "api-client", "purchase", `{"revenue":10}`, revenueBase),
	}

	stats := ComputeRevenueStats(current, nil, NewRegexExtractor())

	assert.InDelta(t, 100.0, stats.TotalRevenue, 0.001)
	// 100 revenue over the 2 sessions that viewed a page, not all 3
	assert.InDelta(t, 50.0, stats.RevenuePerVisitor, 0.001)
}

func TestComputeRevenueStats_PageViewsCarryNoRevenue(t *testing.T) {
	pv := testsupport.PageView(1, "s1", "/", revenueBase)
	pv.Properties = `{"revenue":99}`

	stats := ComputeRevenueStats([]events.Event{pv}, nil, NewRegexExtractor())
	assert.Equal(t, 0.0, stats.TotalRevenue)
	assert.Equal(t, int64(0), stats.Transactions)
}

func TestComputeRevenueByEvent(t *testing.T) {
	evts := []events.Event{
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":30}`, revenueBase),
		testsupport.CustomEvent(1, "s2", "purchase", `{"revenue":20}`, revenueBase),
		testsupport.CustomEvent(1, "s3", "upgrade", `{"revenue":10}`, revenueBase),
		testsupport.CustomEvent(1, "s4", "signup", "", revenueBase), // no revenue, excluded
	}

	results := ComputeRevenueByEvent(evts, NewRegexExtractor())
	require.Len(t, results, 2)
	assert.Equal(t, RevenueByEvent{EventName: "purchase", Revenue: 50, Transactions: 2}, results[0])
	assert.Equal(t, RevenueByEvent{EventName: "upgrade", Revenue: 10, Transactions: 1}, results[1])
}

func TestComputeRevenueAttribution_FirstTouchPriority(t *testing.T) {
	campaign := testsupport.PageView(1, "s1", "/", revenueBase)
	campaign.UTMCampaign = "spring_sale"
	campaign.UTMSource = "google"
	campaign.Referrer = "https://www.google.com/search"

	source := testsupport.PageView(1, "s2", "/", revenueBase)
	source.UTMSource = "newsletter"
	source.Referrer = "https://example.org"

	referred := testsupport.PageView(1, "s3", "/", revenueBase)
	referred.Referrer = "https://www.partner.com/post"

	direct := testsupport.PageView(1, "s4", "/", revenueBase)

	evts := []events.Event{
		campaign,
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":40}`, revenueBase.Add(time.Minute)),
		source,
		testsupport.CustomEvent(1, "s2", "purchase", `{"revenue":30}`, revenueBase.Add(time.Minute)),
		referred,
		testsupport.CustomEvent(1, "s3", "purchase", `{"revenue":20}`, revenueBase.Add(time.Minute)),
		direct,
	}

	results := ComputeRevenueAttribution(evts, NewRegexExtractor())
	require.Len(t, results, 4)

	// sorted descending by revenue
	assert.Equal(t, "spring_sale", results[0].Source)
	assert.InDelta(t, 40.0, results[0].Revenue, 0.001)
	assert.Equal(t, "newsletter", results[1].Source)
	assert.Equal(t, "partner.com", results[2].Source) // hostname, www. stripped
	assert.Equal(t, events.DirectLabel, results[3].Source)
	assert.Equal(t, 0.0, results[3].ConversionRate)
}

func TestComputeRevenueAttribution_RateCountsTransactions(t *testing.T) {
	// one session from one source firing two revenue events: the rate is
	// transactions over sessions, so it lands at 200, not 100
	entry := testsupport.PageView(1, "s1", "/", revenueBase)
	entry.UTMSource = "newsletter"

	evts := []events.Event{
		entry,
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":10}`, revenueBase.Add(time.Minute)),
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":20}`, revenueBase.Add(2*time.Minute)),
	}

	results := ComputeRevenueAttribution(evts, NewRegexExtractor())
	require.Len(t, results, 1)
	assert.Equal(t, "newsletter", results[0].Source)
	assert.Equal(t, int64(2), results[0].Transactions)
	assert.Equal(t, int64(1), results[0].Sessions)
	assert.InDelta(t, 200.0, results[0].ConversionRate, 0.001)
}

func TestComputeRevenueAttribution_NoPageViewIsDirect(t *testing.T) {
	evts := []events.Event{
		testsupport.CustomEvent(1, "s1", "purchase", `{"revenue":10}`, revenueBase),
	}

	results := ComputeRevenueAttribution(evts, NewRegexExtractor())
	require.Len(t, results, 1)
	assert.Equal(t, events.DirectLabel, results[0].Source)
	assert.InDelta(t, 100.0, results[0].ConversionRate, 0.001)
}

func TestRevenueStatsInTimeFrame(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	project := testsupport.CreateTestProject(db, "revenue.example.com")

	testsupport.SaveEvents(t, db, []events.Event{
		testsupport.CustomEvent(project.ID, "s1", "purchase", `{"revenue":"29.99"}`, revenueBase),
		testsupport.CustomEvent(project.ID, "p1", "purchase", `{"revenue":10}`, revenueBase.AddDate(0, 0, -8)),
	})

	params := NewProjectScopedQueryParams(weekFrame(revenueBase.Add(time.Hour)), project.ID)
	stats, err := RevenueStatsInTimeFrame(db, params)
	require.NoError(t, err)

	assert.InDelta(t, 29.99, stats.TotalRevenue, 0.001)
	assert.InDelta(t, 10.0, stats.PreviousRevenue, 0.001)
}
