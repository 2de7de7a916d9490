package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence"
)

// DLQManager re-queues dead-lettered entries with exponential backoff and
// quarantines entries that exhausted their retries.
type DLQManager struct {
	store      persistence.Store
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewDLQManager constructs a DLQManager with the provided store and retry configuration.
func NewDLQManager(store persistence.Store, maxRetries int, baseDelay time.Duration, logger zerolog.Logger) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{store: store, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger, now: time.Now}
}

// RunOnce processes a batch of due DLQ entries and returns the count of
// entries re-queued or quarantined.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	entries, err := entriesWithStatus(ctx, m.store, StatusDeadLettered)
	if err != nil {
		return 0, err
	}
	dlqBacklogGauge.Set(float64(len(entries)))

	now := m.now()
	processed := 0
	var errs error
	for _, entry := range entries {
		if batchSize > 0 && processed >= batchSize {
			break
		}
		if now.Before(entry.LastAttemptAt.Add(m.backoffDelay(entry.Attempts))) {
			continue
		}
		if err := m.handleEntry(ctx, entry); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		processed++
	}
	return processed, errs
}

func (m *DLQManager) handleEntry(ctx context.Context, entry Entry) error {
	if entry.Attempts >= m.maxRetries {
		err := m.store.Write(ctx, Collection, entry.ID, map[string]any{
			"status":           string(StatusQuarantined),
			"quarantinedAt":    domain.FormatTimestamp(m.now()),
			"quarantineReason": "retry limit reached",
		}, true)
		if err != nil {
			return err
		}
		dlqQuarantinedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
		m.logger.Warn().Str("event_id", entry.ID).Str("event_type", entry.EventType).Int("attempts", entry.Attempts).Msg("outbox entry quarantined")
		return nil
	}

	if err := m.store.Write(ctx, Collection, entry.ID, map[string]any{"status": string(StatusPending)}, true); err != nil {
		dlqRetryCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
		return err
	}
	dlqRequeuedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
	return nil
}

// backoffDelay calculates exponential backoff capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 20 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * m.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}
