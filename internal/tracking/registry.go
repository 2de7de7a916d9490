package tracking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/fittrack/internal/observability"
	"example.com/fittrack/internal/sensor"
)

// ErrSessionNotFound is returned for unknown session ids or ids owned by another user.
var ErrSessionNotFound = errors.New("tracking session not found")

// Session is a registered tracking session: a manager bound to the sensor
// feed its device pushes into.
type Session struct {
	ID       string
	UserID   string
	OpenedAt time.Time
	Manager  *Manager
	Feed     *sensor.Feed

	lastActive atomic.Int64
}

// LastActive reports when the session was last touched.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// Registry holds the open sessions of a server process.
type Registry struct {
	writer      ActivityWriter
	logger      zerolog.Logger
	managerOpts []Option
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry constructs a Registry whose managers write through writer.
func NewRegistry(writer ActivityWriter, logger zerolog.Logger, managerOpts ...Option) *Registry {
	return &Registry{
		writer:      writer,
		logger:      logger,
		managerOpts: managerOpts,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Open mounts a new session for userID.
func (r *Registry) Open(userID string, feedOpts sensor.FeedOptions) *Session {
	id := uuid.NewString()
	feed := sensor.NewFeed(feedOpts)
	logger := r.logger.With().Str("session_id", id).Str("user_id", userID).Logger()

	opts := append([]Option{WithLogger(logger)}, r.managerOpts...)
	now := r.now()
	session := &Session{
		ID:       id,
		UserID:   userID,
		OpenedAt: now,
		Manager:  NewManager(feed, feed, r.writer, StaticUser(userID), opts...),
		Feed:     feed,
	}
	session.touch(now)

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	observability.SessionOpened()
	logger.Info().Msg("tracking session opened")
	return session
}

// Get returns the session when it exists and belongs to userID.
func (r *Registry) Get(id, userID string) (*Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	session.touch(r.now())
	return session, nil
}

// Close unmounts the session, stopping any tracking in progress.
func (r *Registry) Close(id, userID string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if !ok || session.UserID != userID {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	r.unmount(session, "closed")
	return nil
}

// Latest returns the most recently touched session of userID.
func (r *Registry) Latest(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Session
	for _, session := range r.sessions {
		if session.UserID != userID {
			continue
		}
		if latest == nil || session.lastActive.Load() > latest.lastActive.Load() {
			latest = session
		}
	}
	return latest, latest != nil
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap closes sessions idle for at least idleAfter and returns how many were closed.
func (r *Registry) Reap(idleAfter time.Duration) int {
	cutoff := r.now().Add(-idleAfter)

	r.mu.Lock()
	var idle []*Session
	for id, session := range r.sessions {
		if !session.LastActive().After(cutoff) {
			idle = append(idle, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	sort.Slice(idle, func(i, j int) bool { return idle[i].ID < idle[j].ID })
	for _, session := range idle {
		r.unmount(session, "idle")
	}
	return len(idle)
}

// Run reaps idle sessions every interval until ctx is cancelled, then closes the rest.
func (r *Registry) Run(ctx context.Context, interval, idleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			if n := r.Reap(idleAfter); n > 0 {
				r.logger.Info().Int("reaped", n).Msg("idle tracking sessions closed")
			}
		}
	}
}

// CloseAll unmounts every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		r.unmount(session, "shutdown")
	}
}

func (r *Registry) unmount(session *Session, reason string) {
	session.Manager.Close()
	observability.SessionClosed()
	r.logger.Info().
		Str("session_id", session.ID).
		Str("user_id", session.UserID).
		Str("reason", reason).
		Msg("tracking session closed")
}
