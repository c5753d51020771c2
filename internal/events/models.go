package events

import "time"

// EventType represents the type of a tracked event.
type EventType string

const (
	EventTypePageView  EventType = "pageview"
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeCustom    EventType = "custom"
	EventTypeScroll    EventType = "scroll"
	EventTypeOutbound  EventType = "outbound"
	EventTypeDownload  EventType = "download"
)

// Event represents a single anonymized visit event. Rows are append-only:
// created once by the collection boundary, never mutated, and removed only by
// retention purge or cascading project deletion.
//
// Geo and client fields are empty when the project's privacy mode withholds
// them; the reporting layer maps empty values to "Unknown".
type Event struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ProjectID uint      `gorm:"index:idx_project_timestamp;not null"`
	SessionID string    `gorm:"index;size:64;not null"`
	EventType EventType `gorm:"not null;default:'pageview'"`
	EventName string    `gorm:"index"`
	Path      string    `gorm:"index;not null"`
	Referrer  string

	Country string
	City    string
	Region  string

	Browser string
	OS      string
	Device  string

	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string

	ScrollDepth *int
	TargetURL   string
	Properties  string `gorm:"type:text"`

	Timestamp time.Time `gorm:"index:idx_project_timestamp;not null"`
	CreatedAt time.Time
}

// IsPageView reports whether the event is a page view.
func (e *Event) IsPageView() bool {
	return e.EventType == EventTypePageView
}

// IsCustom reports whether the event is a custom event.
func (e *Event) IsCustom() bool {
	return e.EventType == EventTypeCustom
}
