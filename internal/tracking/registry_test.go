package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/sensor"
)

func TestRegistryScopesSessionsToOwner(t *testing.T) {
	reg := NewRegistry(&stubWriter{}, zerolog.Nop())
	session := reg.Open("user-1", grantedFeed())

	got, err := reg.Get(session.ID, "user-1")
	require.NoError(t, err)
	require.Same(t, session, got)

	_, err = reg.Get(session.ID, "user-2")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, reg.Close(session.ID, "user-2"), ErrSessionNotFound)

	require.NoError(t, reg.Close(session.ID, "user-1"))
	require.Zero(t, reg.Len())
	_, err = reg.Get(session.ID, "user-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryCloseStopsTracking(t *testing.T) {
	reg := NewRegistry(&stubWriter{}, zerolog.Nop())
	session := reg.Open("user-1", grantedFeed())
	require.NoError(t, session.Manager.StartTracking(context.Background()))

	require.NoError(t, reg.Close(session.ID, "user-1"))

	locations, steps := session.Feed.Watchers()
	require.Zero(t, locations)
	require.Zero(t, steps)
	require.ErrorIs(t, session.Manager.StartTracking(context.Background()), ErrSessionClosed)
}

func TestRegistryReapsIdleSessions(t *testing.T) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	reg := NewRegistry(&stubWriter{}, zerolog.Nop())
	reg.now = func() time.Time { return now }

	stale := reg.Open("user-1", grantedFeed())
	require.NoError(t, stale.Manager.StartTracking(context.Background()))

	now = now.Add(10 * time.Minute)
	fresh := reg.Open("user-1", grantedFeed())

	now = now.Add(10 * time.Minute)
	require.Equal(t, 1, reg.Reap(15*time.Minute))
	require.Equal(t, 1, reg.Len())

	_, err := reg.Get(stale.ID, "user-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = reg.Get(fresh.ID, "user-1")
	require.NoError(t, err)

	locations, _ := stale.Feed.Watchers()
	require.Zero(t, locations)
}

func TestRegistryLatestPrefersRecentlyTouched(t *testing.T) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	reg := NewRegistry(&stubWriter{}, zerolog.Nop())
	reg.now = func() time.Time { return now }

	first := reg.Open("user-1", grantedFeed())
	now = now.Add(time.Minute)
	reg.Open("user-1", grantedFeed())
	reg.Open("user-2", grantedFeed())

	now = now.Add(time.Minute)
	_, err := reg.Get(first.ID, "user-1")
	require.NoError(t, err)

	latest, ok := reg.Latest("user-1")
	require.True(t, ok)
	require.Equal(t, first.ID, latest.ID)

	_, ok = reg.Latest("user-3")
	require.False(t, ok)
}

func TestRegistryRunClosesAllOnCancel(t *testing.T) {
	reg := NewRegistry(&stubWriter{}, zerolog.Nop())
	session := reg.Open("user-1", sensor.FeedOptions{LocationPermission: sensor.PermissionGranted})
	require.NoError(t, session.Manager.StartTracking(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Hour, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("registry did not stop")
	}
	require.Zero(t, reg.Len())
	require.Equal(t, StateIdle, session.Manager.State())
}
