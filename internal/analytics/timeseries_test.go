package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/events"
	"sitelens/internal/testsupport"
	"sitelens/internal/timeframe"
)

func TestBucketTimeSeries_HourlyZeroFill(t *testing.T) {
	from := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	tf := &timeframe.TimeFrame{
		From:       from,
		To:         from.Add(3 * time.Hour),
		Filter:     timeframe.Filter24Hours,
		BucketSize: timeframe.BucketSizeHour,
	}

	evts := []events.Event{
		testsupport.PageView(1, "s1", "/", from.Add(10*time.Minute)),
		testsupport.PageView(1, "s2", "/", from.Add(20*time.Minute)),
		testsupport.Heartbeat(1, "s1", "/", from.Add(30*time.Minute)),
		testsupport.PageView(1, "s1", "/about", from.Add(2*time.Hour)),
	}

	points := BucketTimeSeries(evts, tf)
	require.Len(t, points, 4)

	assert.Equal(t, from, points[0].Timestamp)
	assert.Equal(t, int64(2), points[0].Views)
	assert.Equal(t, int64(2), points[0].UniqueVisitors)

	// empty bucket is present and zeroed
	assert.Equal(t, int64(0), points[1].Views)
	assert.Equal(t, int64(0), points[1].UniqueVisitors)

	assert.Equal(t, int64(1), points[2].Views)
	assert.Equal(t, int64(1), points[2].UniqueVisitors)
}

func TestBucketTimeSeries_HeartbeatsCountVisitorsNotViews(t *testing.T) {
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	tf := &timeframe.TimeFrame{
		From:       from,
		To:         from.Add(time.Hour),
		Filter:     timeframe.Filter24Hours,
		BucketSize: timeframe.BucketSizeHour,
	}

	evts := []events.Event{
		testsupport.Heartbeat(1, "s1", "/", from.Add(time.Minute)),
	}

	points := BucketTimeSeries(evts, tf)
	require.NotEmpty(t, points)
	assert.Equal(t, int64(0), points[0].Views)
	assert.Equal(t, int64(1), points[0].UniqueVisitors)
}

func TestTimeSeriesInTimeFrame(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	project := testsupport.CreateTestProject(db, "series.example.com")

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	testsupport.SaveEvents(t, db, []events.Event{
		testsupport.PageView(project.ID, "s1", "/", from.Add(time.Hour)),
		testsupport.PageView(project.ID, "s2", "/", from.Add(26*time.Hour)),
	})

	params := NewProjectScopedQueryParams(&timeframe.TimeFrame{
		From:       from,
		To:         from.AddDate(0, 0, 3),
		Filter:     timeframe.Filter3Days,
		BucketSize: timeframe.BucketSizeDay,
	}, project.ID)

	points, err := TimeSeriesInTimeFrame(db, params)
	require.NoError(t, err)
	require.Len(t, points, 4)
	assert.Equal(t, int64(1), points[0].Views)
	assert.Equal(t, int64(1), points[1].Views)
	assert.Equal(t, int64(0), points[2].Views)
}
