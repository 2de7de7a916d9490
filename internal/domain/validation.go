package domain

import (
	"strconv"
	"strings"
)

// NormalizeActivityType trims the free-text activity type and rejects empty input.
func NormalizeActivityType(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", NewValidationError("activityType", "please enter a valid activity type and duration")
	}
	return trimmed, nil
}

// ValidateDuration rejects non-positive durations.
func ValidateDuration(minutes int) error {
	if minutes <= 0 {
		return NewValidationError("duration", "please enter a valid activity type and duration")
	}
	return nil
}

// ParseDurationMinutes parses a whole, positive number of minutes from form input.
func ParseDurationMinutes(raw string) (int, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, NewValidationError("duration", "please enter a valid activity type and duration")
	}
	if err := ValidateDuration(minutes); err != nil {
		return 0, err
	}
	return minutes, nil
}
