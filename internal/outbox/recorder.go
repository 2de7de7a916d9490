package outbox

import (
	"context"

	"github.com/rs/zerolog"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/events"
)

// ActivityWriter persists an activity record for a member.
type ActivityWriter interface {
	AppendActivity(ctx context.Context, userID, key string, record domain.ActivityRecord) error
}

// RecordingWriter writes activities through next and enqueues activity.recorded
// for each successful write. Enqueue failures are logged and never fail the write.
type RecordingWriter struct {
	next   ActivityWriter
	outbox *Outbox
	logger zerolog.Logger
}

// NewRecordingWriter wraps next.
func NewRecordingWriter(next ActivityWriter, outbox *Outbox, logger zerolog.Logger) *RecordingWriter {
	return &RecordingWriter{next: next, outbox: outbox, logger: logger}
}

// AppendActivity implements ActivityWriter.
func (w *RecordingWriter) AppendActivity(ctx context.Context, userID, key string, record domain.ActivityRecord) error {
	if err := w.next.AppendActivity(ctx, userID, key, record); err != nil {
		return err
	}

	evt, err := events.NewActivityRecorded(userID, key, record)
	if err != nil {
		w.logger.Error().Err(err).Str("activity_key", key).Msg("encode activity event")
		return nil
	}
	if err := w.outbox.Enqueue(ctx, evt); err != nil {
		w.logger.Warn().Err(err).Str("user_id", userID).Str("activity_key", key).Msg("activity event not enqueued")
	}
	return nil
}
