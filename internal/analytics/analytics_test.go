package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sitelens/internal/events"
	"sitelens/internal/timeframe"
)

// weekFrame is the standard test window: seven days ending at the given time.
func weekFrame(end time.Time) *timeframe.TimeFrame {
	return &timeframe.TimeFrame{
		From:       end.AddDate(0, 0, -7),
		To:         end,
		Filter:     timeframe.Filter7Days,
		BucketSize: timeframe.BucketSizeDay,
	}
}

func TestNewProjectScopedQueryParams_NilTimeFrame(t *testing.T) {
	params := NewProjectScopedQueryParams(nil, 42)

	assert.Equal(t, uint(42), params.ProjectID)
	assert.Equal(t, DefaultBreakdownLimit, params.Limit)
	assert.NotNil(t, params.TimeFrame)
	assert.Equal(t, timeframe.DefaultFilter, params.TimeFrame.Filter)
	assert.InDelta(t, 7*24*time.Hour, params.TimeFrame.To.Sub(params.TimeFrame.From), float64(time.Second))
}

func TestDistinctSessionCount(t *testing.T) {
	evts := []events.Event{
		{SessionID: "a"},
		{SessionID: "a"},
		{SessionID: "b"},
	}
	assert.Equal(t, int64(2), distinctSessionCount(evts))
	assert.Equal(t, int64(0), distinctSessionCount(nil))
}

func TestPercentageChange(t *testing.T) {
	change := PercentageChange(150, 100)
	if assert.NotNil(t, change) {
		assert.InDelta(t, 50.0, *change, 0.001)
	}

	change = PercentageChange(50, 100)
	if assert.NotNil(t, change) {
		assert.InDelta(t, -50.0, *change, 0.001)
	}

	assert.Nil(t, PercentageChange(10, 0))
}
