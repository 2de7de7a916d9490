// Package outbox stores domain events in the document store and delivers
// them to Kafka.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/persistence"
)

// Collection holds one document per enqueued event.
const Collection = "outbox"

// Status is the delivery state of an outbox entry.
type Status string

const (
	StatusPending      Status = "pending"
	StatusPublished    Status = "published"
	StatusDeadLettered Status = "dead_lettered"
	StatusQuarantined  Status = "quarantined"
)

// Entry is an outbox document.
type Entry struct {
	ID            string
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       string
	Status        Status
	Attempts      int
	Reason        string
	CreatedAt     time.Time
	LastAttemptAt time.Time
}

func (e Entry) fields() map[string]any {
	fields := map[string]any{
		"eventType":    e.EventType,
		"topic":        e.Topic,
		"partitionKey": e.PartitionKey,
		"payload":      e.Payload,
		"status":       string(e.Status),
		"attempts":     e.Attempts,
		"reason":       e.Reason,
		"createdAt":    domain.FormatTimestamp(e.CreatedAt),
	}
	if !e.LastAttemptAt.IsZero() {
		fields["lastAttemptAt"] = domain.FormatTimestamp(e.LastAttemptAt)
	}
	return fields
}

func entryFromDocument(doc persistence.Document) Entry {
	str := func(key string) string {
		s, _ := doc.Fields[key].(string)
		return s
	}
	ts := func(key string) time.Time {
		t, _ := time.Parse(domain.TimestampLayout, str(key))
		return t
	}
	attempts := 0
	switch v := doc.Fields["attempts"].(type) {
	case int:
		attempts = v
	case float64:
		attempts = int(v)
	}
	return Entry{
		ID:            doc.ID,
		EventType:     str("eventType"),
		Topic:         str("topic"),
		PartitionKey:  str("partitionKey"),
		Payload:       str("payload"),
		Status:        Status(str("status")),
		Attempts:      attempts,
		Reason:        str("reason"),
		CreatedAt:     ts("createdAt"),
		LastAttemptAt: ts("lastAttemptAt"),
	}
}

// Outbox enqueues events for the dispatcher.
type Outbox struct {
	store  persistence.Store
	topic  string
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs an Outbox writing entries addressed to topic.
func New(store persistence.Store, topic string, logger zerolog.Logger) *Outbox {
	if topic == "" {
		topic = events.DefaultTopic
	}
	return &Outbox{store: store, topic: topic, now: time.Now, logger: logger}
}

// Enqueue stores evt as a pending entry.
func (o *Outbox) Enqueue(ctx context.Context, evt events.Event) error {
	entry := Entry{
		EventType:    evt.Type,
		Topic:        o.topic,
		PartitionKey: evt.UserID,
		Payload:      string(evt.Payload),
		Status:       StatusPending,
		CreatedAt:    o.now().UTC(),
	}
	id, err := o.store.Insert(ctx, Collection, entry.fields())
	if err != nil {
		enqueueFailedCounter.WithLabelValues(evt.Type).Inc()
		return fmt.Errorf("enqueue %s: %w", evt.Type, err)
	}
	enqueuedCounter.WithLabelValues(evt.Type).Inc()
	o.logger.Debug().Str("event_id", id).Str("event_type", evt.Type).Msg("event enqueued")
	return nil
}

// entriesWithStatus lists entries in creation order.
func entriesWithStatus(ctx context.Context, store persistence.Store, status Status) ([]Entry, error) {
	docs, err := store.QueryByField(ctx, Collection, "status", string(status))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, entryFromDocument(doc))
	}
	sortEntries(entries)
	return entries, nil
}
