package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDurationMinutes(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "30", want: 30},
		{raw: " 45 ", want: 45},
		{raw: "0", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "12.5", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseDurationMinutes(tc.raw)
		if tc.wantErr {
			require.ErrorIs(t, err, ErrValidation, "input %q", tc.raw)
			continue
		}
		require.NoError(t, err, "input %q", tc.raw)
		require.Equal(t, tc.want, got)
	}
}

func TestNormalizeActivityTypeRejectsWhitespace(t *testing.T) {
	_, err := NormalizeActivityType("   \t")
	require.ErrorIs(t, err, ErrValidation)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, "activityType", vErr.Field)

	got, err := NormalizeActivityType("  Running ")
	require.NoError(t, err)
	require.Equal(t, "Running", got)
}

func TestParseGoalType(t *testing.T) {
	gt, err := ParseGoalType("calories")
	require.NoError(t, err)
	require.Equal(t, GoalCalories, gt)

	gt, err = ParseGoalType("Workout Duration")
	require.NoError(t, err)
	require.Equal(t, GoalWorkoutDuration, gt)

	_, err = ParseGoalType("")
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParseGoalType("Sleep")
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParseGoalValue("0")
	require.ErrorIs(t, err, ErrValidation)

	v, err := ParseGoalValue("10000")
	require.NoError(t, err)
	require.Equal(t, 10000.0, v)
}

func TestDistanceMeters(t *testing.T) {
	a := Coordinates{Latitude: 40.0, Longitude: -73.0}
	require.Zero(t, DistanceMeters(a, a))

	// One thousandth of a degree of latitude is roughly 111 m.
	b := Coordinates{Latitude: 40.001, Longitude: -73.0}
	require.InDelta(t, 111.2, DistanceMeters(a, b), 0.5)
}

func TestCoordinatesValidate(t *testing.T) {
	require.NoError(t, Coordinates{Latitude: 40, Longitude: -73}.Validate())
	require.ErrorIs(t, Coordinates{Latitude: 91}.Validate(), ErrValidation)
	require.ErrorIs(t, Coordinates{Longitude: -181}.Validate(), ErrValidation)
}

func TestActivityRecordFields(t *testing.T) {
	savedAt := time.Date(2025, time.March, 3, 9, 30, 15, 250*int(time.Millisecond), time.UTC)
	loc := Coordinates{Latitude: 40.0, Longitude: -73.0}
	rec := NewActivityRecord("Running", 30, &loc, 1200, savedAt)

	require.Equal(t, "2025-03-03T09:30:15.250Z", rec.Timestamp)
	require.Equal(t, "1740994215250", ActivityKey(savedAt))

	loc.Latitude = 0
	require.Equal(t, 40.0, rec.Location.Latitude, "record must not alias the snapshot")

	parsed := ActivityRecordFromFields(map[string]any{
		"type":      "Running",
		"duration":  float64(30),
		"steps":     float64(1200),
		"timestamp": rec.Timestamp,
		"location":  map[string]any{"latitude": 40.0, "longitude": -73.0},
	})
	require.Equal(t, rec, parsed)
}

func TestActivityKeysNewestFirst(t *testing.T) {
	profile := UserProfile{Activities: map[string]ActivityRecord{
		"999":           {Type: "a"},
		"1700000000000": {Type: "b"},
		"1700000000500": {Type: "c"},
	}}
	require.Equal(t, []string{"1700000000500", "1700000000000", "999"}, profile.ActivityKeysNewestFirst())
}
