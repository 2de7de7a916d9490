package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsOpenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "tracking",
		Name:      "sessions_open",
		Help:      "Number of tracking sessions currently mounted.",
	})
	trackingStartedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "tracking",
		Name:      "started_total",
		Help:      "Number of tracking sessions that reached the tracking state.",
	})
	lateCallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "tracking",
		Name:      "late_callbacks_discarded_total",
		Help:      "Sensor callbacks dropped because their subscription was already released, by sensor.",
	}, []string{"sensor"})
	savesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "tracking",
		Name:      "saves_total",
		Help:      "Activity save attempts grouped by outcome.",
	}, []string{"outcome"})
	activitySavedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "tracking",
		Name:      "last_activity_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity record written.",
	})
)

// Save outcomes.
const (
	SaveOutcomeSuccess    = "success"
	SaveOutcomeInvalid    = "invalid"
	SaveOutcomeStoreError = "store_error"
)

func init() {
	prometheus.MustRegister(sessionsOpenGauge, trackingStartedCounter, lateCallbackCounter, savesCounter, activitySavedGauge)
}

// SessionOpened increments the mounted sessions gauge.
func SessionOpened() { sessionsOpenGauge.Inc() }

// SessionClosed decrements the mounted sessions gauge.
func SessionClosed() { sessionsOpenGauge.Dec() }

// TrackingStarted counts a session entering the tracking state.
func TrackingStarted() { trackingStartedCounter.Inc() }

// LateCallbackDiscarded counts a dropped callback for the named sensor.
func LateCallbackDiscarded(sensor string) {
	lateCallbackCounter.WithLabelValues(sensor).Inc()
}

// RecordSave counts a save attempt outcome.
func RecordSave(outcome string) {
	savesCounter.WithLabelValues(outcome).Inc()
}

// RecordActivitySaved updates the saved-activity watermark gauge.
func RecordActivitySaved(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activitySavedGauge.Set(float64(ts.Unix()))
}

// LateCallbacks exposes the discarded-callback collector for tests.
func LateCallbacks() *prometheus.CounterVec { return lateCallbackCounter }

// Saves exposes the save-outcome collector for tests.
func Saves() *prometheus.CounterVec { return savesCounter }
