// Package funnels holds persisted funnel definitions: an ordered sequence of
// match criteria measuring sequential conversion through a site.
package funnels

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"sitelens/internal/events"
)

// StepType discriminates what a funnel step matches against.
type StepType string

const (
	StepTypeURL   StepType = "url"
	StepTypeEvent StepType = "event"
)

// FunnelNotFoundError signals a funnel id that does not exist for the given
// project. Callers translate it to a user-facing 404; it is never collapsed
// into an empty analysis.
type FunnelNotFoundError struct {
	FunnelID  uint
	ProjectID uint
}

func (e *FunnelNotFoundError) Error() string {
	return fmt.Sprintf("funnel %d not found for project %d", e.FunnelID, e.ProjectID)
}

// NewFunnelNotFoundError creates a new FunnelNotFoundError
func NewFunnelNotFoundError(funnelID, projectID uint) *FunnelNotFoundError {
	return &FunnelNotFoundError{FunnelID: funnelID, ProjectID: projectID}
}

// Funnel represents a persisted funnel definition owning ordered steps.
type Funnel struct {
	ID        uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint         `gorm:"index;not null" json:"project_id"`
	Name      string       `gorm:"not null" json:"name"`
	Steps     []FunnelStep `gorm:"constraint:OnDelete:CASCADE" json:"steps"`
	CreatedAt time.Time    `json:"created_at"`
}

// FunnelStep is one criterion in a funnel. Steps are contiguous 1..N, N>=2.
type FunnelStep struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	FunnelID   uint     `gorm:"index;not null" json:"funnel_id"`
	StepNumber int      `gorm:"not null" json:"step_number"`
	StepType   StepType `gorm:"not null" json:"step_type"`
	MatchValue string   `gorm:"not null" json:"match_value"`
}

// Matches reports whether an event satisfies the step criterion. URL steps
// require a page view with exact path equality; event steps require a custom
// event with exact name equality. Never prefix or regex.
func (s *FunnelStep) Matches(e *events.Event) bool {
	switch s.StepType {
	case StepTypeURL:
		return e.EventType == events.EventTypePageView && e.Path == s.MatchValue
	case StepTypeEvent:
		return e.EventType == events.EventTypeCustom && e.EventName == s.MatchValue
	default:
		return false
	}
}

// GetFunnelOrNotFound retrieves a funnel scoped by project, with its steps
// ordered by step number.
func GetFunnelOrNotFound(db *gorm.DB, projectID, funnelID uint) (*Funnel, error) {
	var funnel Funnel
	err := db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Where("id = ? AND project_id = ?", funnelID, projectID).
		First(&funnel).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewFunnelNotFoundError(funnelID, projectID)
		}
		return nil, fmt.Errorf("unexpected error querying funnel: %w", err)
	}
	return &funnel, nil
}

// GetFunnelsForProject retrieves all funnel definitions for a project.
func GetFunnelsForProject(db *gorm.DB, projectID uint) ([]Funnel, error) {
	var all []Funnel
	err := db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&all).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get funnels: %w", err)
	}
	return all, nil
}
