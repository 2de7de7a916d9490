package sensor

import (
	"context"
	"errors"
	"sync"
	"time"

	"example.com/fittrack/internal/domain"
)

// ErrAlreadyCanceled is reported by Cancel on a released subscription.
var ErrAlreadyCanceled = errors.New("subscription already canceled")

// FeedOptions declares what the device granted when the feed was opened.
type FeedOptions struct {
	LocationPermission PermissionStatus
	PedometerAvailable bool
}

// Feed is a LocationProvider and StepCounter for one device. The device pushes
// location fixes and its cumulative pedometer total; the feed fans them out to
// watchers, applying each watch's distance filter and step baseline.
type Feed struct {
	mu        sync.Mutex
	opts      FeedOptions
	lastFix   *domain.Coordinates
	fixAt     time.Time
	total     int
	seenTotal bool
	nextID    uint64
	locations map[uint64]*locationWatch
	steps     map[uint64]*stepWatch
}

type locationWatch struct {
	opts     WatchOptions
	fn       func(domain.Coordinates)
	reported *domain.Coordinates
}

type stepWatch struct {
	fn   func(int)
	base int
}

// NewFeed constructs a Feed.
func NewFeed(opts FeedOptions) *Feed {
	if opts.LocationPermission == "" {
		opts.LocationPermission = PermissionDenied
	}
	return &Feed{
		opts:      opts,
		locations: make(map[uint64]*locationWatch),
		steps:     make(map[uint64]*stepWatch),
	}
}

// RequestPermission implements LocationProvider.
func (f *Feed) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts.LocationPermission, nil
}

// CurrentPosition implements LocationProvider with the last pushed fix.
func (f *Feed) CurrentPosition(ctx context.Context) (domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opts.LocationPermission != PermissionGranted {
		return domain.Coordinates{}, domain.ErrPermissionDenied
	}
	if f.lastFix == nil {
		return domain.Coordinates{}, ErrNoFix
	}
	return *f.lastFix, nil
}

// LastFixAt reports when the last location was pushed.
func (f *Feed) LastFixAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fixAt
}

// WatchPosition implements LocationProvider.
func (f *Feed) WatchPosition(ctx context.Context, opts WatchOptions, fn func(domain.Coordinates)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opts.LocationPermission != PermissionGranted {
		return nil, domain.ErrPermissionDenied
	}
	f.nextID++
	id := f.nextID
	f.locations[id] = &locationWatch{opts: opts, fn: fn}
	return &feedSubscription{release: func() bool { return f.removeLocation(id) }}, nil
}

// IsAvailable implements StepCounter.
func (f *Feed) IsAvailable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts.PedometerAvailable, nil
}

// WatchStepCount implements StepCounter. Counts start at zero from the device total at subscription time.
func (f *Feed) WatchStepCount(ctx context.Context, fn func(steps int)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opts.PedometerAvailable {
		return nil, ErrUnavailable
	}
	f.nextID++
	id := f.nextID
	f.steps[id] = &stepWatch{fn: fn, base: f.total}
	return &feedSubscription{release: func() bool { return f.removeSteps(id) }}, nil
}

// PushLocation records a device fix and notifies the watches whose distance filter it passes.
func (f *Feed) PushLocation(fix domain.Coordinates) error {
	if err := fix.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.opts.LocationPermission != PermissionGranted {
		f.mu.Unlock()
		return domain.ErrPermissionDenied
	}
	current := fix
	f.lastFix = &current
	f.fixAt = time.Now().UTC()

	notify := make([]func(domain.Coordinates), 0, len(f.locations))
	for _, w := range f.locations {
		if w.reported != nil && domain.DistanceMeters(*w.reported, fix) < w.opts.DistanceInterval {
			continue
		}
		reported := fix
		w.reported = &reported
		notify = append(notify, w.fn)
	}
	f.mu.Unlock()

	for _, fn := range notify {
		fn(fix)
	}
	return nil
}

// PushSteps records the device's cumulative pedometer total. A total lower
// than the previous one is treated as a device counter reset; watches keep
// counting from where they were.
func (f *Feed) PushSteps(total int) error {
	if total < 0 {
		return domain.NewValidationError("steps", "steps must be >= 0")
	}

	f.mu.Lock()
	if !f.opts.PedometerAvailable {
		f.mu.Unlock()
		return ErrUnavailable
	}
	if f.seenTotal && total < f.total {
		for _, w := range f.steps {
			w.base -= f.total
		}
	}
	f.total = total
	f.seenTotal = true

	type delivery struct {
		fn    func(int)
		steps int
	}
	notify := make([]delivery, 0, len(f.steps))
	for _, w := range f.steps {
		notify = append(notify, delivery{fn: w.fn, steps: total - w.base})
	}
	f.mu.Unlock()

	for _, d := range notify {
		d.fn(d.steps)
	}
	return nil
}

// Watchers reports the number of open location and step watches.
func (f *Feed) Watchers() (locations, steps int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.locations), len(f.steps)
}

func (f *Feed) removeLocation(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locations[id]; !ok {
		return false
	}
	delete(f.locations, id)
	return true
}

func (f *Feed) removeSteps(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.steps[id]; !ok {
		return false
	}
	delete(f.steps, id)
	return true
}

type feedSubscription struct {
	release func() bool
}

func (s *feedSubscription) Cancel() error {
	if !s.release() {
		return ErrAlreadyCanceled
	}
	return nil
}
