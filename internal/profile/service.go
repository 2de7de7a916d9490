package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/persistence"
)

const (
	// GuestName is greeted when the member has no first name on record.
	GuestName = "Guest"
	// NoBio is shown when the member has not written a bio.
	NoBio = "No bio available."
)

// EventSink accepts events for asynchronous publication.
type EventSink interface {
	Enqueue(ctx context.Context, event events.Event) error
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to stamp goals.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEventSink publishes goal events through sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.events = sink
	}
}

// Service implements the profile, goal and progress operations.
type Service struct {
	store    persistence.Store
	accessor *Accessor
	events   EventSink
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService constructs a Service over store.
func NewService(store persistence.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		accessor: NewAccessor(store),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accessor exposes the underlying member document accessor.
func (s *Service) Accessor() *Accessor {
	return s.accessor
}

// Register creates the member document for a freshly signed-up identity.
func (s *Service) Register(ctx context.Context, identity domain.UserIdentity, firstName, lastName string) (domain.UserProfile, error) {
	fields := map[string]any{
		"firstName": strings.TrimSpace(firstName),
		"lastName":  strings.TrimSpace(lastName),
		"email":     identity.Email,
	}
	if err := s.accessor.Set(ctx, identity.UID, fields, false); err != nil {
		return domain.UserProfile{}, err
	}
	s.logger.Info().Str("user_id", identity.UID).Msg("member registered")
	return domain.ProfileFromFields(identity.UID, fields), nil
}

// Dashboard is the greeting shown after sign in.
type Dashboard struct {
	DisplayName string `json:"displayName"`
}

// Dashboard greets the member by first name. A missing document or a read
// failure falls back to the guest greeting.
func (s *Service) Dashboard(ctx context.Context, uid string) Dashboard {
	profile, err := s.accessor.Get(ctx, uid)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_id", uid).Msg("dashboard profile read failed")
		}
		return Dashboard{DisplayName: GuestName}
	}
	if profile.FirstName == "" {
		return Dashboard{DisplayName: GuestName}
	}
	return Dashboard{DisplayName: profile.FirstName}
}

// View is the profile screen projection.
type View struct {
	UID          string              `json:"uid"`
	FirstName    string              `json:"firstName"`
	LastName     string              `json:"lastName"`
	Email        string              `json:"email"`
	Bio          string              `json:"bio"`
	ProfileImage *string             `json:"profileImage"`
	Location     *domain.Coordinates `json:"location,omitempty"`
}

// Profile reads the profile screen fields.
func (s *Service) Profile(ctx context.Context, uid string) (View, error) {
	profile, err := s.accessor.Get(ctx, uid)
	if err != nil {
		return View{}, err
	}
	view := View{
		UID:          profile.UID,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Email:        profile.Email,
		Bio:          profile.Bio,
		ProfileImage: profile.ProfileImage,
	}
	if view.Bio == "" {
		view.Bio = NoBio
	}
	return view, nil
}

// UpdateBio merge-writes a non-empty bio.
func (s *Service) UpdateBio(ctx context.Context, uid, bio string) error {
	if strings.TrimSpace(bio) == "" {
		return domain.NewValidationError("bio", "bio cannot be empty")
	}
	return s.accessor.Set(ctx, uid, map[string]any{"bio": bio}, true)
}

// UpdateProfileImage merge-writes the picked image URI.
func (s *Service) UpdateProfileImage(ctx context.Context, uid, uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return domain.NewValidationError("profileImage", "image uri is required")
	}
	return s.accessor.Set(ctx, uid, map[string]any{"profileImage": uri}, true)
}

// Progress returns the member's progressData, empty when none has been recorded.
func (s *Service) Progress(ctx context.Context, uid string) (map[string]any, error) {
	profile, err := s.accessor.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	return profile.ProgressData, nil
}

// SetGoal validates and stores a goal, then publishes goal.set. Publication
// failures are logged and do not fail the call.
func (s *Service) SetGoal(ctx context.Context, uid, rawType, rawValue string) (domain.GoalSetting, error) {
	goalType, err := domain.ParseGoalType(rawType)
	if err != nil {
		return domain.GoalSetting{}, err
	}
	value, err := domain.ParseGoalValue(rawValue)
	if err != nil {
		return domain.GoalSetting{}, err
	}

	goal := domain.GoalSetting{
		GoalType:  goalType,
		GoalValue: value,
		UserID:    uid,
		Timestamp: s.now().UTC(),
	}
	id, err := s.store.Insert(ctx, GoalsCollection, goal.ToFields())
	if err != nil {
		return domain.GoalSetting{}, mapStoreError(err)
	}
	goal.ID = id

	if s.events != nil {
		if evt, err := events.NewGoalSet(goal); err != nil {
			s.logger.Error().Err(err).Msg("encode goal event")
		} else if err := s.events.Enqueue(ctx, evt); err != nil {
			s.logger.Warn().Err(err).Str("goal_id", id).Msg("goal event not enqueued")
		}
	}
	return goal, nil
}

// Goals lists the member's goals, newest first.
func (s *Service) Goals(ctx context.Context, uid string) ([]domain.GoalSetting, error) {
	docs, err := s.store.QueryByField(ctx, GoalsCollection, "userId", uid)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", mapStoreError(err))
	}
	goals := make([]domain.GoalSetting, 0, len(docs))
	for _, doc := range docs {
		goals = append(goals, domain.GoalSettingFromFields(doc.ID, doc.Fields))
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Timestamp.After(goals[j].Timestamp)
	})
	return goals, nil
}
