// Package goals holds persisted conversion goals: a single url or event
// criterion counted per session, with no ordering constraint.
package goals

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"sitelens/internal/events"
)

// GoalType discriminates what a goal matches against.
type GoalType string

const (
	GoalTypeURL   GoalType = "url"
	GoalTypeEvent GoalType = "event"
)

// ConversionGoal represents a persisted single-criterion goal.
type ConversionGoal struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID  uint      `gorm:"index;not null" json:"project_id"`
	Name       string    `gorm:"not null" json:"name"`
	GoalType   GoalType  `gorm:"not null" json:"goal_type"`
	MatchValue string    `gorm:"not null" json:"match_value"`
	CreatedAt  time.Time `json:"created_at"`
}

// Matches reports whether an event satisfies the goal criterion. Same exact
// matching rules as funnel steps: url means page view with path equality,
// event means custom event with name equality.
func (g *ConversionGoal) Matches(e *events.Event) bool {
	switch g.GoalType {
	case GoalTypeURL:
		return e.EventType == events.EventTypePageView && e.Path == g.MatchValue
	case GoalTypeEvent:
		return e.EventType == events.EventTypeCustom && e.EventName == g.MatchValue
	default:
		return false
	}
}

// GetGoalsForProject retrieves all conversion goals for a project.
func GetGoalsForProject(db *gorm.DB, projectID uint) ([]ConversionGoal, error) {
	var all []ConversionGoal
	if err := db.Where("project_id = ?", projectID).Order("id ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to get conversion goals: %w", err)
	}
	return all, nil
}
