// Package sessions reconstructs visitor sessions from flat event rows.
//
// A session is the set of events sharing a session id within the queried
// window, ordered ascending by timestamp. The sort is stable: events with
// equal timestamps keep their fetch order, which is a documented ambiguity
// rather than something this package tries to resolve.
package sessions

import (
	"sort"
	"time"

	"sitelens/internal/events"
)

// Session is a derived entity; it is never persisted.
type Session struct {
	ID     string
	Events []events.Event
}

// Reconstruct groups events by session id into chronologically sorted
// sessions. The returned sessions are ordered by first-event time (id as a
// tiebreaker) so repeated calls over the same rows are deterministic.
func Reconstruct(evts []events.Event) []Session {
	grouped := make(map[string][]events.Event)
	for _, e := range evts {
		grouped[e.SessionID] = append(grouped[e.SessionID], e)
	}

	result := make([]Session, 0, len(grouped))
	for id, sessionEvents := range grouped {
		sort.SliceStable(sessionEvents, func(i, j int) bool {
			return sessionEvents[i].Timestamp.Before(sessionEvents[j].Timestamp)
		})
		result = append(result, Session{ID: id, Events: sessionEvents})
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Events[0].Timestamp, result[j].Events[0].Timestamp
		if a.Equal(b) {
			return result[i].ID < result[j].ID
		}
		return a.Before(b)
	})

	return result
}

// PageViews returns the session's page view events in chronological order.
func (s *Session) PageViews() []events.Event {
	var views []events.Event
	for _, e := range s.Events {
		if e.IsPageView() {
			views = append(views, e)
		}
	}
	return views
}

// EntryPath returns the path of the first page view, or "" for sessions
// without page views.
func (s *Session) EntryPath() string {
	for _, e := range s.Events {
		if e.IsPageView() {
			return e.Path
		}
	}
	return ""
}

// ExitPath returns the path of the last page view by timestamp, or "".
func (s *Session) ExitPath() string {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].IsPageView() {
			return s.Events[i].Path
		}
	}
	return ""
}

// DistinctPaths counts distinct page view paths in the session.
func (s *Session) DistinctPaths() int {
	paths := make(map[string]struct{})
	for _, e := range s.Events {
		if e.IsPageView() {
			paths[e.Path] = struct{}{}
		}
	}
	return len(paths)
}

// HeartbeatCount counts heartbeat events in the session.
func (s *Session) HeartbeatCount() int {
	count := 0
	for _, e := range s.Events {
		if e.EventType == events.EventTypeHeartbeat {
			count++
		}
	}
	return count
}

// HasHeartbeat reports whether the session recorded any heartbeat.
func (s *Session) HasHeartbeat() bool {
	return s.HeartbeatCount() > 0
}

// HasCustomEvent reports whether the session fired any custom event.
func (s *Session) HasCustomEvent() bool {
	for _, e := range s.Events {
		if e.IsCustom() {
			return true
		}
	}
	return false
}

// IsBounce reports whether the session bounced: exactly one distinct page
// view path and no heartbeat activity.
func (s *Session) IsBounce() bool {
	return s.DistinctPaths() == 1 && !s.HasHeartbeat()
}

// DurationEstimate approximates how long the session lasted as
// heartbeatCount x heartbeat interval. This undercounts sessions shorter
// than one heartbeat; it is an estimate, not elapsed wall time.
func (s *Session) DurationEstimate(heartbeatIntervalSeconds int) time.Duration {
	return time.Duration(s.HeartbeatCount()*heartbeatIntervalSeconds) * time.Second
}

// BounceRate returns the percentage of bounced sessions, 0.0 when there are
// no sessions.
func BounceRate(sessions []Session) float64 {
	if len(sessions) == 0 {
		return 0.0
	}

	bounced := 0
	for i := range sessions {
		if sessions[i].IsBounce() {
			bounced++
		}
	}
	return float64(bounced) / float64(len(sessions)) * 100
}
