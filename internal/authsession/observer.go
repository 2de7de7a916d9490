// Package authsession tracks the signed-in identity of a client and notifies
// subscribers when it changes.
package authsession

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"example.com/fittrack/internal/domain"
)

// Provider is an authentication backend.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (domain.UserIdentity, error)
	SignIn(ctx context.Context, email, password string) (domain.UserIdentity, error)
	SignOut(ctx context.Context) error
}

// Listener receives the current identity, or nil when signed out.
type Listener func(identity *domain.UserIdentity)

// Option configures optional behaviour for the Observer.
type Option func(*Observer)

// WithLogger overrides the observer logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// Observer holds the identity reported by a Provider.
type Observer struct {
	provider Provider
	cache    *ProfileCache
	logger   zerolog.Logger

	// notifyMu orders state changes with their notifications; listeners
	// must not call back into SignIn, SignUp, SignOut or Restore.
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *domain.UserIdentity
	nextID    int
	listeners map[int]Listener
}

// NewObserver constructs a signed-out Observer over provider.
func NewObserver(provider Provider, opts ...Option) *Observer {
	o := &Observer{
		provider:  provider,
		cache:     &ProfileCache{},
		logger:    zerolog.Nop(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SignUp creates an account and signs it in.
func (o *Observer) SignUp(ctx context.Context, email, password string) (domain.UserIdentity, error) {
	identity, err := o.provider.SignUp(ctx, email, password)
	if err != nil {
		return domain.UserIdentity{}, err
	}
	o.set(&identity)
	return identity, nil
}

// SignIn authenticates and records the identity. Provider errors are returned unchanged.
func (o *Observer) SignIn(ctx context.Context, email, password string) (domain.UserIdentity, error) {
	identity, err := o.provider.SignIn(ctx, email, password)
	if err != nil {
		return domain.UserIdentity{}, err
	}
	o.set(&identity)
	return identity, nil
}

// SignOut signs the current user out and clears the cached profile fields.
// Signing out while signed out is a no-op.
func (o *Observer) SignOut(ctx context.Context) error {
	if _, ok := o.UserID(); !ok {
		o.cache.Clear()
		return nil
	}
	if err := o.provider.SignOut(ctx); err != nil {
		return err
	}
	o.cache.Clear()
	o.set(nil)
	return nil
}

// Restore records an identity signed in elsewhere, such as one resumed from a
// saved token, and notifies listeners as a sign-in would.
func (o *Observer) Restore(identity domain.UserIdentity) {
	o.set(&identity)
}

// OnAuthStateChanged calls fn with the current identity now and after every
// change until the returned function is called.
func (o *Observer) OnAuthStateChanged(fn Listener) (unsubscribe func()) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	current := copyIdentity(o.current)
	o.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// Current returns the signed-in identity.
func (o *Observer) Current() (domain.UserIdentity, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return domain.UserIdentity{}, false
	}
	return *o.current, true
}

// UserID returns the signed-in user id.
func (o *Observer) UserID() (string, bool) {
	identity, ok := o.Current()
	return identity.UID, ok
}

// Cache returns the cached profile fields of the signed-in user.
func (o *Observer) Cache() *ProfileCache {
	return o.cache
}

func (o *Observer) set(identity *domain.UserIdentity) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	o.current = copyIdentity(identity)
	listeners := make([]Listener, 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	if identity != nil {
		o.logger.Info().Str("user_id", identity.UID).Msg("signed in")
	} else {
		o.logger.Info().Msg("signed out")
	}
	for _, fn := range listeners {
		fn(copyIdentity(identity))
	}
}

func copyIdentity(identity *domain.UserIdentity) *domain.UserIdentity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}
