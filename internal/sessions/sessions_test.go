package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/events"
	"sitelens/internal/sessions"
)

func pageView(sessionID, path string, ts time.Time) events.Event {
	return events.Event{SessionID: sessionID, EventType: events.EventTypePageView, Path: path, Timestamp: ts}
}

func heartbeat(sessionID string, ts time.Time) events.Event {
	return events.Event{SessionID: sessionID, EventType: events.EventTypeHeartbeat, Path: "/", Timestamp: ts}
}

func TestReconstructGroupsAndSorts(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	// Deliberately out of order across and within sessions.
	evts := []events.Event{
		pageView("s2", "/pricing", base.Add(5*time.Minute)),
		pageView("s1", "/checkout", base.Add(10*time.Minute)),
		pageView("s1", "/", base),
		pageView("s2", "/", base.Add(4*time.Minute)),
		pageView("s1", "/cart", base.Add(2*time.Minute)),
	}

	result := sessions.Reconstruct(evts)
	require.Len(t, result, 2)

	assert.Equal(t, "s1", result[0].ID)
	assert.Equal(t, "/", result[0].Events[0].Path)
	assert.Equal(t, "/cart", result[0].Events[1].Path)
	assert.Equal(t, "/checkout", result[0].Events[2].Path)

	assert.Equal(t, "s2", result[1].ID)
	assert.Equal(t, "/", result[1].EntryPath())
	assert.Equal(t, "/pricing", result[1].ExitPath())
}

func TestReconstructKeepsFetchOrderOnEqualTimestamps(t *testing.T) {
	ts := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	evts := []events.Event{
		pageView("s1", "/first", ts),
		pageView("s1", "/second", ts),
		pageView("s1", "/third", ts),
	}

	result := sessions.Reconstruct(evts)
	require.Len(t, result, 1)
	assert.Equal(t, "/first", result[0].Events[0].Path)
	assert.Equal(t, "/second", result[0].Events[1].Path)
	assert.Equal(t, "/third", result[0].Events[2].Path)
}

func TestIsBounce(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("single page view without heartbeat bounces", func(t *testing.T) {
		s := sessions.Reconstruct([]events.Event{pageView("s1", "/", base)})[0]
		assert.True(t, s.IsBounce())
	})

	t.Run("heartbeat cancels the bounce", func(t *testing.T) {
		s := sessions.Reconstruct([]events.Event{
			pageView("s1", "/", base),
			heartbeat("s1", base.Add(15*time.Second)),
		})[0]
		assert.False(t, s.IsBounce())
	})

	t.Run("two distinct paths do not bounce", func(t *testing.T) {
		s := sessions.Reconstruct([]events.Event{
			pageView("s1", "/", base),
			pageView("s1", "/about", base.Add(time.Minute)),
		})[0]
		assert.False(t, s.IsBounce())
	})

	t.Run("repeated views of the same path still bounce", func(t *testing.T) {
		s := sessions.Reconstruct([]events.Event{
			pageView("s1", "/", base),
			pageView("s1", "/", base.Add(time.Minute)),
		})[0]
		assert.True(t, s.IsBounce())
	})
}

func TestBounceRate(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, sessions.BounceRate(nil))

	// One bouncing session, two multi-page sessions: 33.33...%
	evts := []events.Event{
		pageView("s1", "/", base),
		pageView("s2", "/", base),
		pageView("s2", "/about", base.Add(time.Minute)),
		pageView("s3", "/", base),
		pageView("s3", "/pricing", base.Add(2*time.Minute)),
	}

	rate := sessions.BounceRate(sessions.Reconstruct(evts))
	assert.InDelta(t, 33.333, rate, 0.01)
}

func TestDurationEstimate(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	s := sessions.Reconstruct([]events.Event{
		pageView("s1", "/", base),
		heartbeat("s1", base.Add(15*time.Second)),
		heartbeat("s1", base.Add(30*time.Second)),
		heartbeat("s1", base.Add(45*time.Second)),
	})[0]

	assert.Equal(t, 45*time.Second, s.DurationEstimate(15))

	// No heartbeats: duration is estimated at zero even if the page views
	// span real time.
	short := sessions.Reconstruct([]events.Event{
		pageView("s2", "/", base),
		pageView("s2", "/about", base.Add(10*time.Minute)),
	})[0]
	assert.Equal(t, time.Duration(0), short.DurationEstimate(15))
}

func TestEntryAndExitIgnoreNonPageViews(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	s := sessions.Reconstruct([]events.Event{
		{SessionID: "s1", EventType: events.EventTypeCustom, EventName: "signup", Path: "/welcome", Timestamp: base},
		pageView("s1", "/landing", base.Add(time.Second)),
		pageView("s1", "/docs", base.Add(time.Minute)),
		{SessionID: "s1", EventType: events.EventTypeOutbound, TargetURL: "https://github.com", Path: "/docs", Timestamp: base.Add(2 * time.Minute)},
	})[0]

	assert.Equal(t, "/landing", s.EntryPath())
	assert.Equal(t, "/docs", s.ExitPath())
	assert.True(t, s.HasCustomEvent())
}
