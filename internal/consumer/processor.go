// Package consumer reads member events from Kafka and folds them into derived state.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/fittrack/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	EventType string
	UserID    string
	Payload   json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry sets how many times a failing handler is attempted per message
// and the base delay between attempts, doubled after each failure.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if backoff >= 0 {
			p.backoff = backoff
		}
	}
}

// ErrHandlerFailed is returned by Run when a message could not be applied
// after every retry. Run stops there so the committed offset never moves past
// the failed message; it is redelivered when the consumer restarts.
var ErrHandlerFailed = errors.New("event handler failed")

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
// A message is committed once handled or once found undecodable.
type Processor struct {
	reader   Reader
	handler  Handler
	logger   zerolog.Logger
	attempts int
	backoff  time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		logger:   zerolog.Nop(),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches and applies messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		msg, err := p.reader.FetchMessage(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled):
			return err
		default:
			p.logger.Error().Err(err).Msg("fetch failed")
			continue
		}

		if err := p.process(ctx, msg); err != nil {
			return err
		}
		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.logger.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("commit failed")
		}
	}
}

// process returns nil when msg may be committed.
func (p *Processor) process(ctx context.Context, msg kafka.Message) error {
	event, err := decodeMessage(msg)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("topic", msg.Topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("dropping undecodable message")
		recordOutcome(Message{Topic: msg.Topic, EventType: "unknown"}, outcomeDropped, time.Time{})
		return nil
	}

	started := time.Now()
	attempt := 0
	err = backoff.RetryNotify(func() error {
		attempt++
		return p.handler.Handle(ctx, event)
	}, p.retryPolicy(ctx), func(err error, wait time.Duration) {
		p.logger.Warn().Err(err).
			Str("event_type", event.EventType).
			Int64("offset", event.Offset).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("handler failed, retrying")
	})
	if err != nil {
		p.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Str("user_id", event.UserID).
			Int64("offset", event.Offset).
			Int("attempts", attempt).
			Msg("handler failed")
		recordOutcome(event, outcomeFailed, started)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s at partition %d offset %d: %v", ErrHandlerFailed, event.EventType, event.Partition, event.Offset, err)
	}
	recordOutcome(event, outcomeApplied, started)
	return nil
}

func (p *Processor) retryPolicy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.backoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.attempts-1)), ctx)
}

func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, events.HeaderEventType)
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	if !json.Valid(msg.Value) {
		return Message{}, fmt.Errorf("payload of %d bytes is not valid JSON", len(msg.Value))
	}

	userID, ok := headerValue(msg, events.HeaderUserID)
	if !ok {
		userID = msg.Key
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		EventType: string(eventType),
		UserID:    string(userID),
		Payload:   json.RawMessage(append([]byte(nil), msg.Value...)),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
