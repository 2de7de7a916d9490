// Package events defines the event payloads published on the activity topic.
package events

import (
	"encoding/json"

	"example.com/fittrack/internal/domain"
)

const (
	// DefaultTopic is the topic activity and goal events are published to.
	DefaultTopic = "fitness_activity_events"

	TypeActivityRecorded = "activity.recorded"
	TypeGoalSet          = "goal.set"

	HeaderEventType = "event_type"
	HeaderUserID    = "user_id"
)

// Event is a typed payload addressed to one member. The member id is the partition key.
type Event struct {
	Type    string
	UserID  string
	Payload json.RawMessage
}

// ActivityRecorded is emitted after an activity record was written to a member document.
type ActivityRecorded struct {
	UserID      string              `json:"userId"`
	ActivityKey string              `json:"activityKey"`
	Type        string              `json:"type"`
	Duration    int                 `json:"duration"`
	Steps       int                 `json:"steps"`
	Location    *domain.Coordinates `json:"location,omitempty"`
	Timestamp   string              `json:"timestamp"`
}

// NewActivityRecorded builds the event for a saved record.
func NewActivityRecorded(userID, key string, record domain.ActivityRecord) (Event, error) {
	return newEvent(TypeActivityRecorded, userID, ActivityRecorded{
		UserID:      userID,
		ActivityKey: key,
		Type:        record.Type,
		Duration:    record.Duration,
		Steps:       record.Steps,
		Location:    record.Location,
		Timestamp:   record.Timestamp,
	})
}

// Record converts the event back into the stored record shape.
func (e ActivityRecorded) Record() domain.ActivityRecord {
	return domain.ActivityRecord{
		Type:      e.Type,
		Duration:  e.Duration,
		Location:  e.Location,
		Steps:     e.Steps,
		Timestamp: e.Timestamp,
	}
}

func newEvent(eventType, userID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, UserID: userID, Payload: raw}, nil
}
