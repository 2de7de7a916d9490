package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/domain"
)

func TestNewActivityRecordedRoundTripsRecord(t *testing.T) {
	record := domain.NewActivityRecord("Running", 30, &domain.Coordinates{Latitude: 40, Longitude: -73}, 1200,
		time.Date(2025, 3, 3, 9, 30, 15, 250_000_000, time.UTC))

	evt, err := NewActivityRecorded("user-1", "1740994215250", record)
	require.NoError(t, err)
	require.Equal(t, TypeActivityRecorded, evt.Type)
	require.Equal(t, "user-1", evt.UserID)

	var payload ActivityRecorded
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	require.Equal(t, "1740994215250", payload.ActivityKey)
	require.Equal(t, record, payload.Record())
}

func TestNewActivityRecordedOmitsMissingLocation(t *testing.T) {
	record := domain.NewActivityRecord("Yoga", 45, nil, 0, time.Unix(0, 0))
	evt, err := NewActivityRecorded("user-1", "0", record)
	require.NoError(t, err)
	require.NotContains(t, string(evt.Payload), "location")
}

func TestNewGoalSet(t *testing.T) {
	goal := domain.GoalSetting{
		ID:        "goal-1",
		GoalType:  domain.GoalSteps,
		GoalValue: 10000,
		UserID:    "user-1",
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	evt, err := NewGoalSet(goal)
	require.NoError(t, err)
	require.Equal(t, TypeGoalSet, evt.Type)
	require.JSONEq(t, `{"goalId":"goal-1","userId":"user-1","goalType":"Steps","goalValue":10000,"timestamp":"2025-01-02T03:04:05.000Z"}`, string(evt.Payload))
}
