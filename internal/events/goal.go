package events

import "example.com/fittrack/internal/domain"

// GoalSet is emitted when a member records a new goal.
type GoalSet struct {
	GoalID    string  `json:"goalId"`
	UserID    string  `json:"userId"`
	GoalType  string  `json:"goalType"`
	GoalValue float64 `json:"goalValue"`
	Timestamp string  `json:"timestamp"`
}

// NewGoalSet builds the event for a stored goal.
func NewGoalSet(goal domain.GoalSetting) (Event, error) {
	return newEvent(TypeGoalSet, goal.UserID, GoalSet{
		GoalID:    goal.ID,
		UserID:    goal.UserID,
		GoalType:  string(goal.GoalType),
		GoalValue: goal.GoalValue,
		Timestamp: domain.FormatTimestamp(goal.Timestamp),
	})
}
