package domain

import (
	"strconv"
	"time"
)

// TimestampLayout renders record timestamps as UTC ISO-8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ActivityRecord is the durable artifact written under a member's activities map.
type ActivityRecord struct {
	Type      string       `json:"type"`
	Duration  int          `json:"duration"`
	Location  *Coordinates `json:"location"`
	Steps     int          `json:"steps"`
	Timestamp string       `json:"timestamp"`
}

// ActivityKey derives the map key for a record saved at t (Unix milliseconds).
// Two saves in the same millisecond produce the same key.
func ActivityKey(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NewActivityRecord builds a record from a session snapshot taken at savedAt.
func NewActivityRecord(activityType string, durationMin int, location *Coordinates, steps int, savedAt time.Time) ActivityRecord {
	var loc *Coordinates
	if location != nil {
		copied := *location
		loc = &copied
	}
	return ActivityRecord{
		Type:      activityType,
		Duration:  durationMin,
		Location:  loc,
		Steps:     steps,
		Timestamp: FormatTimestamp(savedAt),
	}
}

// ToFields converts the record into document-store fields.
func (r ActivityRecord) ToFields() map[string]any {
	fields := map[string]any{
		"type":      r.Type,
		"duration":  r.Duration,
		"steps":     r.Steps,
		"timestamp": r.Timestamp,
		"location":  nil,
	}
	if r.Location != nil {
		fields["location"] = r.Location.ToFields()
	}
	return fields
}

// ActivityRecordFromFields parses a stored record, tolerating numeric types produced by JSON decoding.
func ActivityRecordFromFields(fields map[string]any) ActivityRecord {
	rec := ActivityRecord{
		Type:      stringField(fields, "type"),
		Duration:  intField(fields, "duration"),
		Steps:     intField(fields, "steps"),
		Timestamp: stringField(fields, "timestamp"),
	}
	if raw, ok := fields["location"].(map[string]any); ok {
		loc := Coordinates{
			Latitude:  floatField(raw, "latitude"),
			Longitude: floatField(raw, "longitude"),
		}
		rec.Location = &loc
	}
	return rec
}
