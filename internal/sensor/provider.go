// Package sensor defines the location and step-count provider contracts and a
// push-based implementation fed by a device.
package sensor

import (
	"context"
	"errors"

	"example.com/fittrack/internal/domain"
)

// PermissionStatus is the outcome of a permission request.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
)

// Accuracy mirrors the platform location accuracy levels.
type Accuracy string

const (
	AccuracyBalanced Accuracy = "balanced"
	AccuracyHigh     Accuracy = "high"
)

// DefaultDistanceInterval is the minimum movement in meters before a watch re-reports.
const DefaultDistanceInterval = 100.0

// WatchOptions configures a location watch.
type WatchOptions struct {
	Accuracy         Accuracy
	DistanceInterval float64
}

// DefaultWatchOptions is the high-accuracy, 100 m watch used while tracking.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{Accuracy: AccuracyHigh, DistanceInterval: DefaultDistanceInterval}
}

// ErrNoFix is returned by CurrentPosition when no location has been reported yet.
var ErrNoFix = errors.New("no location fix available")

// ErrUnavailable is returned when watching a sensor the device does not have.
var ErrUnavailable = errors.New("sensor unavailable")

// Subscription is an open sensor feed. Cancel releases it; calling Cancel
// again is a no-op that may report an error, which callers ignore.
type Subscription interface {
	Cancel() error
}

// LocationProvider supplies foreground location.
type LocationProvider interface {
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	CurrentPosition(ctx context.Context) (domain.Coordinates, error)
	WatchPosition(ctx context.Context, opts WatchOptions, fn func(domain.Coordinates)) (Subscription, error)
}

// StepCounter supplies pedometer readings. Counts passed to fn are steps since the watch started.
type StepCounter interface {
	IsAvailable(ctx context.Context) (bool, error)
	WatchStepCount(ctx context.Context, fn func(steps int)) (Subscription, error)
}
