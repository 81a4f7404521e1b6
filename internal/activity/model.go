package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidActivityID indicates that an activity identifier is empty or exceeds storage bounds.
	ErrInvalidActivityID = errors.New("activity: invalid activity id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("activity: invalid user id")
	// ErrInvalidName indicates that an activity name is empty.
	ErrInvalidName = errors.New("activity: invalid activity name")
)

// ActivityID represents a validated activity identifier.
type ActivityID string

// NewActivityID validates raw input and returns an ActivityID.
func NewActivityID(rawInput string) (ActivityID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidActivityID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidActivityID, maxIdentifierLength)
	}
	return ActivityID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ActivityID) String() string {
	return string(id)
}

// UserID represents a validated owner identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Activity models one saved routine activity. DatesCompleted keeps its
// insertion order because completion lookups return the first match in
// sequence order.
type Activity struct {
	ID             string      `gorm:"column:id;primaryKey;size:190;not null"`
	Name           string      `gorm:"column:name;size:320;not null"`
	Tag            string      `gorm:"column:tag;size:190;not null;index:idx_activities_owner_tag,priority:2"`
	SavedBy        string      `gorm:"column:saved_by;size:190;not null;index:idx_activities_owner_tag,priority:1"`
	DatesCompleted []time.Time `gorm:"column:dates_completed;type:text;serializer:json"`
	CreatedAt      time.Time   `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Activity) TableName() string {
	return "activities"
}

// IsCompletedOn reports whether the activity has a completion within the
// UTC calendar day containing the provided instant.
func (a Activity) IsCompletedOn(day time.Time) bool {
	start, end := DayWindow(day)
	return FindWithinRange(a.DatesCompleted, &start, &end) != nil
}

// ActivityView decorates a stored activity with its completion state for
// the current UTC day.
type ActivityView struct {
	Activity
	IsCompletedToday bool
}

// TagGroup bundles every activity saved under one tag, in storage order.
type TagGroup struct {
	Tag        string
	Activities []ActivityView
}

// ListResult carries one page of a listing together with the total count.
// Flat listings populate Activities; grouped listings populate Groups and
// Count reflects the number of distinct tags instead of records.
type ListResult struct {
	Activities []Activity
	Groups     []TagGroup
	Count      int64
}
