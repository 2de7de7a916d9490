package profile

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/persistence"
	"example.com/fittrack/internal/persistence/memory"
)

type failingStore struct {
	persistence.Store
	err error
}

func (f failingStore) Read(context.Context, string, string) (persistence.Document, error) {
	return persistence.Document{}, f.err
}

func (f failingStore) Write(context.Context, string, string, map[string]any, bool) error {
	return f.err
}

type recordingSink struct {
	events []events.Event
	err    error
}

func (r *recordingSink) Enqueue(_ context.Context, evt events.Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func registered(t *testing.T, svc *Service) string {
	t.Helper()
	_, err := svc.Register(context.Background(), domain.UserIdentity{UID: "user-1", Email: "ada@example.com"}, "Ada", "Lovelace")
	require.NoError(t, err)
	return "user-1"
}

func TestAccessorGetMissingMember(t *testing.T) {
	acc := NewAccessor(memory.NewStore())
	_, err := acc.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccessorMapsStoreFailures(t *testing.T) {
	acc := NewAccessor(failingStore{err: errors.New("connection reset")})

	_, err := acc.Get(context.Background(), "user-1")
	require.ErrorIs(t, err, domain.ErrRemoteStore)

	err = acc.Set(context.Background(), "user-1", map[string]any{"bio": "x"}, true)
	require.ErrorIs(t, err, domain.ErrRemoteStore)
}

func TestAppendActivityKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore())
	uid := registered(t, svc)
	acc := svc.Accessor()

	first := domain.NewActivityRecord("Running", 30, &domain.Coordinates{Latitude: 40, Longitude: -73}, 1200, time.UnixMilli(1000))
	second := domain.NewActivityRecord("Yoga", 45, nil, 0, time.UnixMilli(2000))
	require.NoError(t, acc.AppendActivity(ctx, uid, "1000", first))
	require.NoError(t, acc.AppendActivity(ctx, uid, "2000", second))

	profile, err := acc.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.FirstName)
	require.Equal(t, "ada@example.com", profile.Email)
	require.Len(t, profile.Activities, 2)
	require.Equal(t, first, profile.Activities["1000"])
	require.Equal(t, second, profile.Activities["2000"])
}

func TestAppendRejectsEmptyKey(t *testing.T) {
	acc := NewAccessor(memory.NewStore())
	err := acc.Append(context.Background(), "user-1", "activities", " ", map[string]any{})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestListActivitiesPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore())
	uid := registered(t, svc)
	acc := svc.Accessor()

	for i := 1; i <= 5; i++ {
		ms := int64(i) * 1000
		rec := domain.NewActivityRecord("Walk", i, nil, i*10, time.UnixMilli(ms))
		require.NoError(t, acc.AppendActivity(ctx, uid, strconv.FormatInt(ms, 10), rec))
	}

	page, err := acc.ListActivities(ctx, uid, "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"5000", "4000"}, entryKeys(page))
	require.NotEmpty(t, page.NextCursor)

	page, err = acc.ListActivities(ctx, uid, page.NextCursor, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"3000", "2000"}, entryKeys(page))

	page, err = acc.ListActivities(ctx, uid, page.NextCursor, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"1000"}, entryKeys(page))
	require.Empty(t, page.NextCursor)

	_, err = acc.ListActivities(ctx, uid, "not-a-cursor", 2)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func entryKeys(page ActivityPage) []string {
	keys := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		keys = append(keys, item.Key)
	}
	return keys
}

func TestDashboardGreeting(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore())
	require.Equal(t, GuestName, svc.Dashboard(ctx, "user-1").DisplayName)

	registered(t, svc)
	require.Equal(t, "Ada", svc.Dashboard(ctx, "user-1").DisplayName)

	broken := NewService(failingStore{err: errors.New("offline")})
	require.Equal(t, GuestName, broken.Dashboard(ctx, "user-1").DisplayName)
}

func TestProfileBioAndImage(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore())
	uid := registered(t, svc)

	view, err := svc.Profile(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, NoBio, view.Bio)
	require.Nil(t, view.ProfileImage)

	require.ErrorIs(t, svc.UpdateBio(ctx, uid, "   "), domain.ErrValidation)
	require.NoError(t, svc.UpdateBio(ctx, uid, "Marathon in training"))
	require.ErrorIs(t, svc.UpdateProfileImage(ctx, uid, ""), domain.ErrValidation)
	require.NoError(t, svc.UpdateProfileImage(ctx, uid, "file:///photos/me.jpg"))

	view, err = svc.Profile(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, "Marathon in training", view.Bio)
	require.NotNil(t, view.ProfileImage)
	require.Equal(t, "file:///photos/me.jpg", *view.ProfileImage)
	require.Equal(t, "Ada", view.FirstName)
}

func TestProgressDefaultsToEmpty(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore())
	uid := registered(t, svc)

	progress, err := svc.Progress(ctx, uid)
	require.NoError(t, err)
	require.Empty(t, progress)

	require.NoError(t, svc.Accessor().Set(ctx, uid, map[string]any{"progressData.totalSteps": 1200}, true))
	progress, err = svc.Progress(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, 1200, progress["totalSteps"])

	_, err = svc.Progress(ctx, "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetGoalValidatesAndPublishes(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(memory.NewStore(), WithEventSink(sink), WithClock(func() time.Time { return now }))

	_, err := svc.SetGoal(ctx, "user-1", "", "100")
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.SetGoal(ctx, "user-1", "Steps", "-5")
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Empty(t, sink.events)

	goal, err := svc.SetGoal(ctx, "user-1", "Steps", "10000")
	require.NoError(t, err)
	require.NotEmpty(t, goal.ID)
	require.Equal(t, domain.GoalSteps, goal.GoalType)
	require.Equal(t, 10000.0, goal.GoalValue)

	require.Len(t, sink.events, 1)
	require.Equal(t, events.TypeGoalSet, sink.events[0].Type)
	require.Equal(t, "user-1", sink.events[0].UserID)
}

func TestSetGoalSucceedsWhenPublishFails(t *testing.T) {
	sink := &recordingSink{err: errors.New("outbox unavailable")}
	svc := NewService(memory.NewStore(), WithEventSink(sink))

	_, err := svc.SetGoal(context.Background(), "user-1", "Calories", "2000")
	require.NoError(t, err)
}

func TestGoalsNewestFirstPerUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(memory.NewStore(), WithClock(func() time.Time { return now }))

	_, err := svc.SetGoal(ctx, "user-1", "Steps", "8000")
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = svc.SetGoal(ctx, "user-1", "Distance", "5.5")
	require.NoError(t, err)
	_, err = svc.SetGoal(ctx, "user-2", "Calories", "1800")
	require.NoError(t, err)

	goals, err := svc.Goals(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, goals, 2)
	require.Equal(t, domain.GoalDistance, goals[0].GoalType)
	require.Equal(t, 5.5, goals[0].GoalValue)
	require.Equal(t, domain.GoalSteps, goals[1].GoalType)
}
