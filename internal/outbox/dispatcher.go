package outbox

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/persistence"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Dispatcher drains pending outbox entries and delivers them to Kafka.
// Delivery is at least once: an entry is marked published only after the
// write to Kafka returned.
type Dispatcher struct {
	store            persistence.Store
	producer         messageWriter
	pollInterval     time.Duration
	batchSize        int
	logger           zerolog.Logger
	now              func() time.Time
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store persistence.Store, producer messageWriter, pollInterval time.Duration, batchSize int, logger zerolog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Dispatcher{
		store:            store,
		producer:         producer,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		logger:           logger,
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if _, err := d.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("outbox dispatcher error")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// ProcessBatch delivers up to one batch of pending entries and returns how many were handled.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	start := time.Now()

	entries, err := entriesWithStatus(ctx, d.store, StatusPending)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if len(entries) > d.batchSize {
		entries = entries[:d.batchSize]
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, entries); err != nil {
		d.logger.Warn().Err(err).Int("entries", len(entries)).Msg("outbox delivery failure")
		failedCounter.Add(float64(len(entries)))
		return len(entries), d.moveToDLQ(ctx, entries, err.Error())
	}

	deliveredCounter.Add(float64(len(entries)))
	return len(entries), d.markPublished(ctx, entries)
}

func (d *Dispatcher) deliver(ctx context.Context, entries []Entry) error {
	batches := make(map[string][]kafka.Message)
	topics := make([]string, 0)
	for _, entry := range entries {
		if _, ok := batches[entry.Topic]; !ok {
			topics = append(topics, entry.Topic)
		}
		batches[entry.Topic] = append(batches[entry.Topic], toMessage(entry, d.now()))
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return err
		}
	}
	return nil
}

func toMessage(entry Entry, now time.Time) kafka.Message {
	return kafka.Message{
		Key:   []byte(entry.PartitionKey),
		Value: []byte(entry.Payload),
		Time:  now.UTC(),
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(entry.EventType)},
			{Key: events.HeaderUserID, Value: []byte(entry.PartitionKey)},
		},
	}
}

func (d *Dispatcher) markPublished(ctx context.Context, entries []Entry) error {
	now := domain.FormatTimestamp(d.now())
	var errs error
	for _, entry := range entries {
		err := d.store.Write(ctx, Collection, entry.ID, map[string]any{
			"status":      string(StatusPublished),
			"publishedAt": now,
		}, true)
		errs = errors.Join(errs, err)
	}
	return errs
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, entries []Entry, reason string) error {
	now := domain.FormatTimestamp(d.now())
	var errs error
	for _, entry := range entries {
		err := d.store.Write(ctx, Collection, entry.ID, map[string]any{
			"status":        string(StatusDeadLettered),
			"attempts":      entry.Attempts + 1,
			"reason":        reason,
			"lastAttemptAt": now,
		}, true)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		dlqCounter.WithLabelValues(entry.Topic).Inc()
	}
	return errs
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
