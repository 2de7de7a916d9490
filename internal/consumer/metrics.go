package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeApplied = "applied"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "progress",
		Name:      "events_total",
		Help:      "Activity events seen by the progress consumer, by outcome.",
	}, []string{"topic", "event_type", "outcome"})

	skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "progress",
		Name:      "events_skipped_total",
		Help:      "Events acknowledged without changing progress, by reason.",
	}, []string{"event_type", "reason"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fittrack",
		Subsystem: "progress",
		Name:      "handle_duration_seconds",
		Help:      "Time spent applying one event to a member's progress.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"event_type"})

	eventLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "progress",
		Name:      "event_lag_seconds",
		Help:      "Delay between publish and apply for the latest event per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(eventsCounter, skippedCounter, handleDuration, eventLag)
}

func recordOutcome(msg Message, outcome string, started time.Time) {
	eventsCounter.WithLabelValues(msg.Topic, msg.EventType, outcome).Inc()
	if outcome == outcomeDropped {
		return
	}
	handleDuration.WithLabelValues(msg.EventType).Observe(time.Since(started).Seconds())
	if outcome == outcomeApplied && !msg.Timestamp.IsZero() {
		eventLag.WithLabelValues(msg.Topic).Set(time.Since(msg.Timestamp).Seconds())
	}
}

func recordSkipped(eventType, reason string) {
	skippedCounter.WithLabelValues(eventType, reason).Inc()
}
