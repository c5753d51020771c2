package analytics

import (
	"gorm.io/gorm"

	"sitelens/internal/events"
	"sitelens/internal/goals"
)

// GoalStats reports a conversion goal's performance in the current window
// compared against the immediately preceding window of equal length.
type GoalStats struct {
	Goal                *goals.ConversionGoal `json:"goal"`
	Conversions         int64                 `json:"conversions"`
	ConversionRate      float64               `json:"conversion_rate"`
	PreviousConversions int64                 `json:"previous_conversions"`
	PreviousRate        float64               `json:"previous_rate"`
	ConversionsChange   *float64              `json:"conversions_change"`
	RateChange          *float64              `json:"rate_change"`
}

// GoalStatsInTimeFrame evaluates every goal of the project against the
// current window and its previous period. Conversions count sessions with
// at least one matching event, not raw matching events.
func GoalStatsInTimeFrame(db *gorm.DB, params ProjectScopedQueryParams) ([]GoalStats, error) {
	projectGoals, err := goals.GetGoalsForProject(db, params.ProjectID)
	if err != nil {
		return nil, err
	}

	currentEvents, err := eventsForWindow(db, params)
	if err != nil {
		return nil, err
	}

	previousFrame := params.TimeFrame.Previous()
	previousEvents, err := events.InRange(db, params.ProjectID, previousFrame.From, previousFrame.To)
	if err != nil {
		return nil, err
	}

	currentSessions := distinctSessionCount(currentEvents)
	previousSessions := distinctSessionCount(previousEvents)

	stats := make([]GoalStats, 0, len(projectGoals))
	for i := range projectGoals {
		goal := &projectGoals[i]

		conversions := convertedSessionCount(goal, currentEvents)
		previousConversions := convertedSessionCount(goal, previousEvents)

		entry := GoalStats{
			Goal:                goal,
			Conversions:         conversions,
			PreviousConversions: previousConversions,
		}
		if currentSessions > 0 {
			entry.ConversionRate = float64(conversions) / float64(currentSessions) * 100
		}
		if previousSessions > 0 {
			entry.PreviousRate = float64(previousConversions) / float64(previousSessions) * 100
		}
		entry.ConversionsChange = PercentageChange(float64(conversions), float64(previousConversions))
		entry.RateChange = PercentageChange(entry.ConversionRate, entry.PreviousRate)

		stats = append(stats, entry)
	}
	return stats, nil
}

// convertedSessionCount counts distinct sessions containing at least one
// event that satisfies the goal. Repeat conversions within a session do not
// inflate the count.
func convertedSessionCount(goal *goals.ConversionGoal, evts []events.Event) int64 {
	converted := make(map[string]struct{})
	for i := range evts {
		if _, seen := converted[evts[i].SessionID]; seen {
			continue
		}
		if goal.Matches(&evts[i]) {
			converted[evts[i].SessionID] = struct{}{}
		}
	}
	return int64(len(converted))
}
