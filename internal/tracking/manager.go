// Package tracking implements the activity session manager: the state machine
// that owns live location and pedometer subscriptions for one screen visit and
// turns their latest readings into a persisted activity record.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/observability"
	"example.com/fittrack/internal/sensor"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle                  State = "idle"
	StateRequestingPermissions State = "requesting_permissions"
	StateTracking              State = "tracking"
	StateSaving                State = "saving"
)

var (
	// ErrInvalidState is returned when an operation is not valid in the current state.
	ErrInvalidState = errors.New("operation not valid in current session state")
	// ErrSessionClosed is returned once the session has been unmounted.
	ErrSessionClosed = errors.New("tracking session closed")
	// ErrStartInterrupted is returned when tracking was stopped while subscriptions were being opened.
	ErrStartInterrupted = errors.New("tracking stopped before start completed")
)

// WarningPedometerUnavailable is surfaced when tracking runs location-only.
const WarningPedometerUnavailable = "pedometer is not available on this device"

// ActivityWriter persists a record under the member's activities map.
type ActivityWriter interface {
	AppendActivity(ctx context.Context, userID, key string, record domain.ActivityRecord) error
}

// UserSource reads the current user id.
type UserSource interface {
	UserID() (string, bool)
}

// StaticUser is a UserSource bound to a fixed user id.
type StaticUser string

// UserID implements UserSource.
func (u StaticUser) UserID() (string, bool) {
	return string(u), u != ""
}

// Permissions reports the outcome of Initialize.
type Permissions struct {
	Location           sensor.PermissionStatus `json:"location"`
	PedometerAvailable bool                    `json:"pedometerAvailable"`
	Warnings           []string                `json:"warnings,omitempty"`
}

// View is the read-only projection rendered by the UI layer.
type View struct {
	State              State               `json:"state"`
	IsTracking         bool                `json:"isTracking"`
	CurrentSteps       int                 `json:"currentSteps"`
	LastLocation       *domain.Coordinates `json:"lastLocation,omitempty"`
	LocationPermitted  bool                `json:"locationPermitted"`
	PedometerAvailable bool                `json:"pedometerAvailable"`
	StepSubscription   bool                `json:"stepSubscription"`
	Warnings           []string            `json:"warnings,omitempty"`
}

// SaveResult is the record written by Save and its key.
type SaveResult struct {
	Key    string
	Record domain.ActivityRecord
}

// Option configures optional behaviour for the Manager.
type Option func(*Manager)

// WithLogger overrides the logger used to report lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the clock used to stamp saved records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithWatchOptions overrides the location watch options.
func WithWatchOptions(opts sensor.WatchOptions) Option {
	return func(m *Manager) {
		m.watch = opts
	}
}

// Manager owns one tracking session. All methods are safe for concurrent use;
// sensor callbacks may arrive on any goroutine at any time.
type Manager struct {
	location sensor.LocationProvider
	steps    sensor.StepCounter
	writer   ActivityWriter
	user     UserSource
	logger   zerolog.Logger
	now      func() time.Time
	watch    sensor.WatchOptions

	mu                 sync.Mutex
	state              State
	closed             bool
	initialized        bool
	locationGranted    bool
	pedometerAvailable bool
	warnings           []string
	// generation changes on every start and stop; callbacks tagged with an
	// older generation belong to released subscriptions.
	generation   uint64
	currentSteps int
	lastLocation *domain.Coordinates
	locationSub  sensor.Subscription
	stepSub      sensor.Subscription
}

// NewManager constructs a Manager in the Idle state. steps may be nil on devices without a pedometer.
func NewManager(location sensor.LocationProvider, steps sensor.StepCounter, writer ActivityWriter, user UserSource, opts ...Option) *Manager {
	m := &Manager{
		location: location,
		steps:    steps,
		writer:   writer,
		user:     user,
		logger:   zerolog.Nop(),
		now:      time.Now,
		watch:    sensor.DefaultWatchOptions(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize requests location permission and checks pedometer availability.
// A denied location permission returns domain.ErrPermissionDenied and keeps the
// session Idle. A missing pedometer is reported as a warning only.
func (m *Manager) Initialize(ctx context.Context) (Permissions, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Permissions{}, ErrSessionClosed
	}
	if m.state != StateIdle {
		m.mu.Unlock()
		return Permissions{}, ErrInvalidState
	}
	m.state = StateRequestingPermissions
	m.mu.Unlock()

	perms, err := m.requestPermissions(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRequestingPermissions {
		m.state = StateIdle
	}
	if err != nil {
		return perms, err
	}

	m.initialized = true
	m.locationGranted = perms.Location == sensor.PermissionGranted
	m.pedometerAvailable = perms.PedometerAvailable
	m.warnings = perms.Warnings
	if !m.locationGranted {
		m.logger.Info().Msg("location permission denied")
		return perms, fmt.Errorf("%w: location permission is required to track activity", domain.ErrPermissionDenied)
	}
	return perms, nil
}

func (m *Manager) requestPermissions(ctx context.Context) (Permissions, error) {
	status, err := m.location.RequestPermission(ctx)
	if err != nil {
		return Permissions{}, fmt.Errorf("request location permission: %w", err)
	}
	perms := Permissions{Location: status}
	if status != sensor.PermissionGranted {
		return perms, nil
	}

	if m.steps != nil {
		available, err := m.steps.IsAvailable(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("pedometer availability check failed")
		}
		perms.PedometerAvailable = err == nil && available
	}
	if !perms.PedometerAvailable {
		perms.Warnings = append(perms.Warnings, WarningPedometerUnavailable)
	}
	return perms, nil
}

// StartTracking opens the location watch and, when a pedometer is available,
// the step watch. It runs Initialize first when permissions were not granted yet.
func (m *Manager) StartTracking(ctx context.Context) error {
	m.mu.Lock()
	if err := m.checkStartable(); err != nil {
		m.mu.Unlock()
		return err
	}
	needInit := !m.initialized || !m.locationGranted
	m.mu.Unlock()

	if needInit {
		if _, err := m.Initialize(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	if err := m.checkStartable(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.generation++
	gen := m.generation
	m.state = StateTracking
	m.currentSteps = 0
	m.lastLocation = nil
	withSteps := m.pedometerAvailable && m.steps != nil
	m.mu.Unlock()

	locationSub, err := m.location.WatchPosition(ctx, m.watch, m.locationCallback(gen))
	if err != nil {
		m.abortStart(gen)
		m.logger.Error().Err(err).Msg("start location watch failed")
		return fmt.Errorf("start location watch: %w", err)
	}

	var stepSub sensor.Subscription
	if withSteps {
		stepSub, err = m.steps.WatchStepCount(ctx, m.stepCallback(gen))
		if err != nil {
			m.release(locationSub, "location")
			m.abortStart(gen)
			m.logger.Error().Err(err).Msg("start step watch failed")
			return fmt.Errorf("start step watch: %w", err)
		}
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.release(locationSub, "location")
		m.release(stepSub, "steps")
		return ErrStartInterrupted
	}
	m.locationSub = locationSub
	m.stepSub = stepSub
	m.mu.Unlock()

	observability.TrackingStarted()
	m.logger.Info().Bool("steps", stepSub != nil).Msg("tracking started")
	return nil
}

func (m *Manager) checkStartable() error {
	if m.closed {
		return ErrSessionClosed
	}
	if m.state != StateIdle {
		return ErrInvalidState
	}
	return nil
}

func (m *Manager) abortStart(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == gen {
		m.generation++
		m.state = StateIdle
	}
}

func (m *Manager) locationCallback(gen uint64) func(domain.Coordinates) {
	return func(fix domain.Coordinates) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.live(gen) {
			observability.LateCallbackDiscarded("location")
			return
		}
		m.lastLocation = &fix
	}
}

func (m *Manager) stepCallback(gen uint64) func(int) {
	return func(steps int) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.live(gen) {
			observability.LateCallbackDiscarded("steps")
			return
		}
		// The counter never moves backwards while the watch is open.
		if steps > m.currentSteps {
			m.currentSteps = steps
		}
	}
}

func (m *Manager) live(gen uint64) bool {
	return m.generation == gen && (m.state == StateTracking || m.state == StateSaving)
}

// StopTracking releases both subscriptions and returns to Idle. It is
// idempotent and valid in every state.
func (m *Manager) StopTracking() {
	m.mu.Lock()
	locationSub, stepSub := m.locationSub, m.stepSub
	m.locationSub, m.stepSub = nil, nil
	m.generation++
	wasTracking := m.state == StateTracking || m.state == StateSaving
	m.state = StateIdle
	m.mu.Unlock()

	m.release(locationSub, "location")
	m.release(stepSub, "steps")
	if wasTracking {
		m.logger.Info().Msg("tracking stopped")
	}
}

func (m *Manager) release(sub sensor.Subscription, name string) {
	if sub == nil {
		return
	}
	if err := sub.Cancel(); err != nil {
		m.logger.Debug().Err(err).Str("sensor", name).Msg("subscription release ignored")
	}
}

// SaveForm parses the raw duration form value and saves.
func (m *Manager) SaveForm(ctx context.Context, activityType, rawDuration string) (*SaveResult, error) {
	if _, err := domain.NormalizeActivityType(activityType); err != nil {
		observability.RecordSave(observability.SaveOutcomeInvalid)
		return nil, err
	}
	minutes, err := domain.ParseDurationMinutes(rawDuration)
	if err != nil {
		observability.RecordSave(observability.SaveOutcomeInvalid)
		return nil, err
	}
	return m.Save(ctx, activityType, minutes)
}

// Save snapshots the latest readings, writes them as an activity record keyed
// by the save time in milliseconds, and stops tracking. Invalid input returns a
// domain.ValidationError without side effects. A failed write returns
// domain.ErrRemoteStore and leaves the session tracking.
func (m *Manager) Save(ctx context.Context, activityType string, durationMinutes int) (*SaveResult, error) {
	typ, err := domain.NormalizeActivityType(activityType)
	if err != nil {
		observability.RecordSave(observability.SaveOutcomeInvalid)
		return nil, err
	}
	if err := domain.ValidateDuration(durationMinutes); err != nil {
		observability.RecordSave(observability.SaveOutcomeInvalid)
		return nil, err
	}

	userID, ok := m.user.UserID()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if m.state != StateTracking {
		m.mu.Unlock()
		return nil, ErrInvalidState
	}
	gen := m.generation
	savedAt := m.now()
	record := domain.NewActivityRecord(typ, durationMinutes, m.lastLocation, m.currentSteps, savedAt)
	m.state = StateSaving
	m.mu.Unlock()

	key := domain.ActivityKey(savedAt)
	if err := m.writer.AppendActivity(ctx, userID, key, record); err != nil {
		m.mu.Lock()
		if m.generation == gen && m.state == StateSaving {
			m.state = StateTracking
		}
		m.mu.Unlock()

		observability.RecordSave(observability.SaveOutcomeStoreError)
		m.logger.Error().Err(err).Str("activity_key", key).Msg("save activity failed")
		if errors.Is(err, domain.ErrRemoteStore) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteStore, err)
	}

	m.StopTracking()
	observability.RecordSave(observability.SaveOutcomeSuccess)
	observability.RecordActivitySaved(savedAt)
	m.logger.Info().Str("activity_key", key).Str("type", typ).Int("steps", record.Steps).Msg("activity saved")
	return &SaveResult{Key: key, Record: record}, nil
}

// Close unmounts the session: tracking stops and the manager refuses further starts.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.StopTracking()
}

// View returns the current projection of the session.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		State:              m.state,
		IsTracking:         m.state == StateTracking || m.state == StateSaving,
		CurrentSteps:       m.currentSteps,
		LocationPermitted:  m.locationGranted,
		PedometerAvailable: m.pedometerAvailable,
		StepSubscription:   m.stepSub != nil,
	}
	if m.lastLocation != nil {
		loc := *m.lastLocation
		v.LastLocation = &loc
	}
	if len(m.warnings) > 0 {
		v.Warnings = append([]string(nil), m.warnings...)
	}
	return v
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
