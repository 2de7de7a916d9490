package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/profile"
)

// Fields maintained under a member's progressData.
const (
	fieldTotalActivities  = "totalActivities"
	fieldTotalSteps       = "totalSteps"
	fieldTotalMinutes     = "totalMinutes"
	fieldLastActivityType = "lastActivityType"
	fieldLastActivityAt   = "lastActivityAt"
	fieldLastActivityKey  = "lastActivityKey"
	fieldMinutesByType    = "minutesByType"
	fieldGoals            = "goals"
)

// ProgressHandler folds member events into the progressData map of the member document.
//
// Events for one member share a partition, so they arrive in order and one
// handler at a time touches a given document. Redelivered activity events are
// recognised by their key and ignored.
type ProgressHandler struct {
	members *profile.Accessor
	logger  zerolog.Logger
}

// NewProgressHandler constructs a handler writing through members.
func NewProgressHandler(members *profile.Accessor, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{members: members, logger: logger}
}

// Handle implements Handler.
func (h *ProgressHandler) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeActivityRecorded:
		var evt events.ActivityRecorded
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			recordSkipped(msg.EventType, "malformed")
			h.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("malformed activity event")
			return nil
		}
		return h.applyActivity(ctx, evt)
	case events.TypeGoalSet:
		var evt events.GoalSet
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			recordSkipped(msg.EventType, "malformed")
			h.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("malformed goal event")
			return nil
		}
		return h.applyGoal(ctx, evt)
	default:
		recordSkipped(msg.EventType, "unknown_type")
		return nil
	}
}

func (h *ProgressHandler) applyActivity(ctx context.Context, evt events.ActivityRecorded) error {
	if evt.UserID == "" || evt.ActivityKey == "" {
		recordSkipped(events.TypeActivityRecorded, "malformed")
		return nil
	}

	member, err := h.members.Get(ctx, evt.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		recordSkipped(events.TypeActivityRecorded, "unknown_member")
		h.logger.Warn().Str("user_id", evt.UserID).Msg("activity event for unknown member")
		return nil
	}
	if err != nil {
		return err
	}

	progress := member.ProgressData
	if last, ok := progress[fieldLastActivityKey].(string); ok && !keyAfter(evt.ActivityKey, last) {
		recordSkipped(events.TypeActivityRecorded, "already_applied")
		return nil
	}

	typeMinutes := 0
	if byType, ok := progress[fieldMinutesByType].(map[string]any); ok {
		typeMinutes = number(byType[pathSegment(evt.Type)])
	}

	prefix := "progressData."
	update := map[string]any{
		prefix + fieldTotalActivities:  number(progress[fieldTotalActivities]) + 1,
		prefix + fieldTotalSteps:       number(progress[fieldTotalSteps]) + evt.Steps,
		prefix + fieldTotalMinutes:     number(progress[fieldTotalMinutes]) + evt.Duration,
		prefix + fieldLastActivityType: evt.Type,
		prefix + fieldLastActivityAt:   evt.Timestamp,
		prefix + fieldLastActivityKey:  evt.ActivityKey,
		prefix + fieldMinutesByType + "." + pathSegment(evt.Type): typeMinutes + evt.Duration,
	}
	if err := h.members.Set(ctx, evt.UserID, update, true); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	h.logger.Debug().Str("user_id", evt.UserID).Str("activity_key", evt.ActivityKey).Msg("progress updated")
	return nil
}

func (h *ProgressHandler) applyGoal(ctx context.Context, evt events.GoalSet) error {
	if evt.UserID == "" || evt.GoalType == "" {
		recordSkipped(events.TypeGoalSet, "malformed")
		return nil
	}
	path := "progressData." + fieldGoals + "." + pathSegment(evt.GoalType)
	err := h.members.Set(ctx, evt.UserID, map[string]any{path: evt.GoalValue}, true)
	if err != nil {
		return fmt.Errorf("update goals: %w", err)
	}
	return nil
}

// keyAfter reports whether activity key a is newer than b. Keys are decimal
// millisecond timestamps without leading zeros.
func keyAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func pathSegment(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", "_"))
	if s == "" {
		return "unknown"
	}
	return s
}

func number(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}
