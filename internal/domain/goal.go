package domain

import (
	"strconv"
	"strings"
	"time"
)

// GoalType enumerates the goals a member can set.
type GoalType string

const (
	GoalSteps           GoalType = "Steps"
	GoalCalories        GoalType = "Calories"
	GoalDistance        GoalType = "Distance"
	GoalWorkoutDuration GoalType = "WorkoutDuration"
)

// GoalTypes lists the accepted goal types in display order.
var GoalTypes = []GoalType{GoalSteps, GoalCalories, GoalDistance, GoalWorkoutDuration}

// ParseGoalType matches raw against the known goal types, ignoring case and
// spaces ("Workout Duration" is WorkoutDuration).
func ParseGoalType(raw string) (GoalType, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	for _, gt := range GoalTypes {
		if strings.EqualFold(string(gt), trimmed) {
			return gt, nil
		}
	}
	return "", NewValidationError("goalType", "please select a valid goal type")
}

// ParseGoalValue parses a positive goal value from form input.
func ParseGoalValue(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value <= 0 {
		return 0, NewValidationError("goalValue", "please enter a positive goal value")
	}
	return value, nil
}

// GoalSetting is an append-only goal document.
type GoalSetting struct {
	ID        string    `json:"id,omitempty"`
	GoalType  GoalType  `json:"goalType"`
	GoalValue float64   `json:"goalValue"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// ToFields converts the goal into document-store fields.
func (g GoalSetting) ToFields() map[string]any {
	return map[string]any{
		"goalType":  string(g.GoalType),
		"goalValue": g.GoalValue,
		"userId":    g.UserID,
		"timestamp": FormatTimestamp(g.Timestamp),
	}
}

// GoalSettingFromFields parses a stored goal document.
func GoalSettingFromFields(id string, fields map[string]any) GoalSetting {
	goal := GoalSetting{
		ID:        id,
		GoalType:  GoalType(stringField(fields, "goalType")),
		GoalValue: floatField(fields, "goalValue"),
		UserID:    stringField(fields, "userId"),
	}
	if ts, err := time.Parse(TimestampLayout, stringField(fields, "timestamp")); err == nil {
		goal.Timestamp = ts
	}
	return goal
}
