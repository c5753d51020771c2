// Package segments holds persisted audience segments: a named, reusable
// boolean filter chain over event attributes.
//
// Filter chains evaluate strictly left to right with no parenthetical
// grouping or operator precedence. A filter's logic field governs how the
// FOLLOWING filter combines with the accumulated result, not its own. This
// is a deliberate simplification and is reproduced exactly.
package segments

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"sitelens/internal/events"
)

// Field names a segment filter can target. Closed set; decoding rejects
// anything else.
type Field string

const (
	FieldPath        Field = "path"
	FieldReferrer    Field = "referrer"
	FieldCountry     Field = "country"
	FieldCity        Field = "city"
	FieldRegion      Field = "region"
	FieldBrowser     Field = "browser"
	FieldOS          Field = "os"
	FieldDevice      Field = "device"
	FieldUTMSource   Field = "utm_source"
	FieldUTMMedium   Field = "utm_medium"
	FieldUTMCampaign Field = "utm_campaign"
	FieldUTMTerm     Field = "utm_term"
	FieldUTMContent  Field = "utm_content"
	FieldEventName   Field = "event_name"
	FieldEventType   Field = "event_type"
)

// Operator names the comparison a filter applies. All comparisons are
// case-insensitive.
type Operator string

const (
	OperatorEquals     Operator = "equals"
	OperatorNotEquals  Operator = "not_equals"
	OperatorContains   Operator = "contains"
	OperatorStartsWith Operator = "starts_with"
)

// Logic connects a filter to the next one in the chain.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Filter is one predicate in a segment's chain.
type Filter struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
	Logic    Logic    `json:"logic"`
}

// Segment represents a persisted audience segment. Filters are stored as a
// JSON blob; decoding failures degrade to an empty chain (segment matches
// everything) instead of failing the whole analysis.
type Segment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint      `gorm:"index;not null" json:"project_id"`
	Name      string    `gorm:"not null" json:"name"`
	Filters   string    `gorm:"type:text" json:"filters"`
	CreatedAt time.Time `json:"created_at"`
}

// SegmentNotFoundError signals a segment id that does not exist for the
// given project.
type SegmentNotFoundError struct {
	SegmentID uint
	ProjectID uint
}

func (e *SegmentNotFoundError) Error() string {
	return fmt.Sprintf("segment %d not found for project %d", e.SegmentID, e.ProjectID)
}

// GetSegmentOrNotFound retrieves a segment scoped by project.
func GetSegmentOrNotFound(db *gorm.DB, projectID, segmentID uint) (*Segment, error) {
	var segment Segment
	err := db.Where("id = ? AND project_id = ?", segmentID, projectID).First(&segment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &SegmentNotFoundError{SegmentID: segmentID, ProjectID: projectID}
		}
		return nil, fmt.Errorf("unexpected error querying segment: %w", err)
	}
	return &segment, nil
}

// GetSegmentsForProject retrieves all segments for a project.
func GetSegmentsForProject(db *gorm.DB, projectID uint) ([]Segment, error) {
	var all []Segment
	if err := db.Where("project_id = ?", projectID).Order("id ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to get segments: %w", err)
	}
	return all, nil
}

// DecodedFilters decodes the stored filter blob into a validated chain.
// Malformed JSON or any filter outside the closed field/operator/logic enums
// degrades to an empty chain; the fallback is logged, never raised.
func (s *Segment) DecodedFilters(logger *slog.Logger) []Filter {
	if strings.TrimSpace(s.Filters) == "" {
		return []Filter{}
	}

	var filters []Filter
	if err := json.Unmarshal([]byte(s.Filters), &filters); err != nil {
		if logger != nil {
			logger.Warn("segment filter payload is malformed, matching everything",
				slog.Uint64("segmentID", uint64(s.ID)),
				slog.Any("error", err))
		}
		return []Filter{}
	}

	for i := range filters {
		if err := filters[i].validate(); err != nil {
			if logger != nil {
				logger.Warn("segment filter payload failed validation, matching everything",
					slog.Uint64("segmentID", uint64(s.ID)),
					slog.Int("filterIndex", i),
					slog.Any("error", err))
			}
			return []Filter{}
		}
	}

	return filters
}

func (f *Filter) validate() error {
	switch f.Field {
	case FieldPath, FieldReferrer, FieldCountry, FieldCity, FieldRegion,
		FieldBrowser, FieldOS, FieldDevice,
		FieldUTMSource, FieldUTMMedium, FieldUTMCampaign, FieldUTMTerm, FieldUTMContent,
		FieldEventName, FieldEventType:
	default:
		return fmt.Errorf("unknown segment filter field: %q", f.Field)
	}

	switch f.Operator {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorStartsWith:
	default:
		return fmt.Errorf("unknown segment filter operator: %q", f.Operator)
	}

	switch f.Logic {
	case LogicAnd, LogicOr, "":
	default:
		return fmt.Errorf("unknown segment filter logic: %q", f.Logic)
	}

	return nil
}

// fieldValue pulls the named field off an event. Empty means the event does
// not carry the field.
func fieldValue(e *events.Event, field Field) string {
	switch field {
	case FieldPath:
		return e.Path
	case FieldReferrer:
		return e.Referrer
	case FieldCountry:
		return e.Country
	case FieldCity:
		return e.City
	case FieldRegion:
		return e.Region
	case FieldBrowser:
		return e.Browser
	case FieldOS:
		return e.OS
	case FieldDevice:
		return e.Device
	case FieldUTMSource:
		return e.UTMSource
	case FieldUTMMedium:
		return e.UTMMedium
	case FieldUTMCampaign:
		return e.UTMCampaign
	case FieldUTMTerm:
		return e.UTMTerm
	case FieldUTMContent:
		return e.UTMContent
	case FieldEventName:
		return e.EventName
	case FieldEventType:
		return string(e.EventType)
	default:
		return ""
	}
}

// Matches reports whether a single filter holds for an event. A missing
// field never matches, regardless of operator.
func (f *Filter) Matches(e *events.Event) bool {
	value := fieldValue(e, f.Field)
	if value == "" {
		return false
	}

	haystack := strings.ToLower(value)
	needle := strings.ToLower(f.Value)

	switch f.Operator {
	case OperatorEquals:
		return haystack == needle
	case OperatorNotEquals:
		return haystack != needle
	case OperatorContains:
		return strings.Contains(haystack, needle)
	case OperatorStartsWith:
		return strings.HasPrefix(haystack, needle)
	default:
		return false
	}
}

// EvaluateChain folds the filter chain left to right over an event. The
// logic of filter i-1 decides how filter i combines with the accumulated
// result. An empty chain matches everything.
func EvaluateChain(filters []Filter, e *events.Event) bool {
	if len(filters) == 0 {
		return true
	}

	result := filters[0].Matches(e)
	for i := 1; i < len(filters); i++ {
		if filters[i-1].Logic == LogicOr {
			result = result || filters[i].Matches(e)
		} else {
			result = result && filters[i].Matches(e)
		}
	}
	return result
}
