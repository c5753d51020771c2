package analytics

import (
	"time"

	"gorm.io/gorm"

	"sitelens/internal/funnels"
	"sitelens/internal/sessions"
)

// StepAnalysis reports how one funnel step performed.
type StepAnalysis struct {
	StepNumber      int              `json:"step_number"`
	StepType        funnels.StepType `json:"step_type"`
	MatchValue      string           `json:"match_value"`
	Sessions        int64            `json:"sessions"`
	ConversionRate  float64          `json:"conversion_rate"`        // relative to all window sessions
	DropOffRate     float64          `json:"drop_off_rate"`          // relative to the previous step
	AvgTimeFromPrev *float64         `json:"avg_time_from_previous"` // seconds; nil for step 1 or no transitions
}

// FunnelAnalysis is the result of matching a funnel against a window.
type FunnelAnalysis struct {
	Funnel        *funnels.Funnel `json:"funnel"`
	TotalSessions int64           `json:"total_sessions"`
	Steps         []StepAnalysis  `json:"steps"`
}

// stepMatch records a session's progress through the funnel. Before step 1
// there is no prior constraint; afterwards the matched timestamp constrains
// the next step. The explicit flag distinguishes "no constraint yet" from a
// real zero-value timestamp.
type stepMatch struct {
	at          time.Time
	constrained bool
}

// AnalyzeFunnel loads the funnel scoped by project and matches it against
// the window's sessions. A funnel id that does not belong to the project
// surfaces as FunnelNotFoundError, never as an empty analysis.
func AnalyzeFunnel(db *gorm.DB, params ProjectScopedQueryParams, funnelID uint) (*FunnelAnalysis, error) {
	funnel, err := funnels.GetFunnelOrNotFound(db, params.ProjectID, funnelID)
	if err != nil {
		return nil, err
	}

	evts, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}

	sess := sessions.Reconstruct(evts)
	return &FunnelAnalysis{
		Funnel:        funnel,
		TotalSessions: int64(len(sess)),
		Steps:         AnalyzeFunnelSteps(funnel.Steps, sess),
	}, nil
}

// AnalyzeFunnelSteps runs the ordered multi-step matching algorithm.
//
// Each step folds the previous step's qualified-session map into a fresh one:
// a session advances if its chronologically sorted events contain a first
// event that satisfies the step AND falls strictly after the session's
// previously matched timestamp. Equal timestamps never pass. Dropped
// sessions never re-enter, so step counts are monotonically non-increasing.
func AnalyzeFunnelSteps(steps []funnels.FunnelStep, sess []sessions.Session) []StepAnalysis {
	totalSessions := int64(len(sess))

	sessionsByID := make(map[string]*sessions.Session, len(sess))
	qualified := make(map[string]stepMatch, len(sess))
	for i := range sess {
		sessionsByID[sess[i].ID] = &sess[i]
		qualified[sess[i].ID] = stepMatch{}
	}

	analyses := make([]StepAnalysis, 0, len(steps))
	previousCount := totalSessions

	for _, step := range steps {
		next := make(map[string]stepMatch, len(qualified))
		var transitionSeconds []float64

		for sessionID, prev := range qualified {
			session := sessionsByID[sessionID]
			for i := range session.Events {
				e := &session.Events[i]
				if prev.constrained && !e.Timestamp.After(prev.at) {
					continue
				}
				if !step.Matches(e) {
					continue
				}
				next[sessionID] = stepMatch{at: e.Timestamp, constrained: true}
				if prev.constrained {
					transitionSeconds = append(transitionSeconds, e.Timestamp.Sub(prev.at).Seconds())
				}
				break
			}
		}

		count := int64(len(next))
		analysis := StepAnalysis{
			StepNumber: step.StepNumber,
			StepType:   step.StepType,
			MatchValue: step.MatchValue,
			Sessions:   count,
		}

		if totalSessions > 0 {
			analysis.ConversionRate = float64(count) / float64(totalSessions) * 100
		}
		if previousCount > 0 {
			analysis.DropOffRate = float64(previousCount-count) / float64(previousCount) * 100
		}
		if len(transitionSeconds) > 0 {
			var sum float64
			for _, s := range transitionSeconds {
				sum += s
			}
			avg := sum / float64(len(transitionSeconds))
			analysis.AvgTimeFromPrev = &avg
		}

		analyses = append(analyses, analysis)
		qualified = next
		previousCount = count
	}

	return analyses
}
