package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/events"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"userId":"user-1","activityKey":"1740994215250"}`)
	msg := kafka.Message{
		Topic:     events.DefaultTopic,
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Key:       []byte("user-1"),
		Value:     payload,
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(events.TypeActivityRecorded)},
			{Key: events.HeaderUserID, Value: []byte("user-1")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(testLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeActivityRecorded, handler.last.EventType)
	require.Equal(t, "user-1", handler.last.UserID)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorFallsBackToKeyForUser(t *testing.T) {
	msg := kafka.Message{
		Key:     []byte("user-9"),
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: events.HeaderEventType, Value: []byte(events.TypeGoalSet)}},
	}
	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, "user-9", decoded.UserID)
	require.Equal(t, events.TypeGoalSet, decoded.EventType)
}

func TestProcessorStopsBeforeLaterOffsetsOnHandlerFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	goalSet := func(offset int64) kafka.Message {
		return kafka.Message{
			Topic:     events.DefaultTopic,
			Partition: 0,
			Offset:    offset,
			Time:      time.Now().UTC(),
			Value:     []byte(`{"goalId":"g-1"}`),
			Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(events.TypeGoalSet)},
				{Key: events.HeaderUserID, Value: []byte("user-2")},
			},
		}
	}

	reader := &stubReader{
		messages: []kafka.Message{goalSet(20), goalSet(21)},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(testLogger(t)), WithRetry(3, 0))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, ErrHandlerFailed)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, int64(20), handler.last.Offset)
	require.Equal(t, 1, reader.index, "offset 21 must not be fetched")
	require.Zero(t, reader.commitCalls)
	require.Empty(t, reader.committed)
}

func TestProcessorRetriesTransientHandlerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{{
			Topic: events.DefaultTopic,
			Key:   []byte("user-3"),
			Value: []byte(`{}`),
			Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(events.TypeActivityRecorded)},
			},
		}},
		after: contextCanceled,
	}
	handler := &stubHandler{err: errors.New("store unavailable"), failures: 2}

	err := NewProcessor(reader, handler, WithLogger(testLogger(t)), WithRetry(5, time.Millisecond)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic := "decode_failures"
	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: topic, Value: []byte(`{}`)},
			{Topic: topic, Value: []byte(`not json`), Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(events.TypeActivityRecorded)},
			}},
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}
	before := testutil.ToFloat64(eventsCounter.WithLabelValues(topic, "unknown", outcomeDropped))

	err := NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
	require.Equal(t, before+2, testutil.ToFloat64(eventsCounter.WithLabelValues(topic, "unknown", outcomeDropped)))
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	committed   []int64
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

// stubHandler returns err for the first failures calls, or for every call
// when failures is zero.
type stubHandler struct {
	calls    int
	failures int
	err      error
	last     Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.failures > 0 && h.calls > h.failures {
		return nil
	}
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(testWriter{t}).With().Timestamp().Logger()
}
