package events

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// InRange retrieves all events for a project within a time window. Rows come
// back in storage order; callers that care about chronology sort themselves.
func InRange(db *gorm.DB, projectID uint, from, to time.Time) ([]Event, error) {
	var evts []Event
	err := db.
		Where("project_id = ?", projectID).
		Where("timestamp >= ?", from.UTC()).
		Where("timestamp <= ?", to.UTC()).
		Find(&evts).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching events in range: %w", err)
	}
	return evts, nil
}

// InRangeOfType retrieves events of a single type for a project window.
func InRangeOfType(db *gorm.DB, projectID uint, from, to time.Time, eventType EventType) ([]Event, error) {
	var evts []Event
	err := db.
		Where("project_id = ?", projectID).
		Where("timestamp >= ?", from.UTC()).
		Where("timestamp <= ?", to.UTC()).
		Where("event_type = ?", eventType).
		Find(&evts).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching %s events in range: %w", eventType, err)
	}
	return evts, nil
}

// CountInRange counts events for a project in a time window.
func CountInRange(db *gorm.DB, projectID uint, from, to time.Time) (int64, error) {
	var count int64
	err := db.Model(&Event{}).
		Where("project_id = ?", projectID).
		Where("timestamp >= ?", from.UTC()).
		Where("timestamp <= ?", to.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting events in range: %w", err)
	}
	return count, nil
}
