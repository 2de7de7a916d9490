package authsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/domain"
)

type stubProvider struct {
	signInErr  error
	signOutErr error
	signOuts   int
}

func (s *stubProvider) SignUp(_ context.Context, email, _ string) (domain.UserIdentity, error) {
	return domain.UserIdentity{UID: "new-user", Email: email}, nil
}

func (s *stubProvider) SignIn(_ context.Context, email, _ string) (domain.UserIdentity, error) {
	if s.signInErr != nil {
		return domain.UserIdentity{}, s.signInErr
	}
	return domain.UserIdentity{UID: "user-1", Email: email}, nil
}

func (s *stubProvider) SignOut(context.Context) error {
	s.signOuts++
	return s.signOutErr
}

func TestObserverNotifiesImmediatelyAndOnChange(t *testing.T) {
	obs := NewObserver(&stubProvider{})
	var seen []*domain.UserIdentity
	unsubscribe := obs.OnAuthStateChanged(func(identity *domain.UserIdentity) {
		seen = append(seen, identity)
	})

	require.Len(t, seen, 1)
	require.Nil(t, seen[0])

	_, err := obs.SignIn(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.Equal(t, "user-1", seen[1].UID)

	uid, ok := obs.UserID()
	require.True(t, ok)
	require.Equal(t, "user-1", uid)

	unsubscribe()
	unsubscribe()
	require.NoError(t, obs.SignOut(context.Background()))
	require.Len(t, seen, 2)
}

func TestObserverSignInErrorVerbatim(t *testing.T) {
	authErr := &domain.AuthError{Message: "invalid email or password"}
	obs := NewObserver(&stubProvider{signInErr: authErr})

	_, err := obs.SignIn(context.Background(), "ada@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrAuth)
	require.Equal(t, "invalid email or password", err.Error())

	_, ok := obs.UserID()
	require.False(t, ok)
}

func TestObserverSignOutClearsCacheAndIsIdempotent(t *testing.T) {
	provider := &stubProvider{}
	obs := NewObserver(provider)
	_, err := obs.SignUp(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	obs.Cache().Store("Ada", "runner", "file:///me.jpg")
	require.Equal(t, "Ada", obs.Cache().FirstName())

	require.NoError(t, obs.SignOut(context.Background()))
	require.NoError(t, obs.SignOut(context.Background()))

	require.Equal(t, 1, provider.signOuts)
	require.Empty(t, obs.Cache().FirstName())
	require.Empty(t, obs.Cache().Bio())
	require.Empty(t, obs.Cache().ProfileImage())
	_, ok := obs.Current()
	require.False(t, ok)
}

func TestObserverSignOutFailureKeepsIdentity(t *testing.T) {
	obs := NewObserver(&stubProvider{signOutErr: errors.New("network down")})
	_, err := obs.SignIn(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	require.Error(t, obs.SignOut(context.Background()))
	_, ok := obs.UserID()
	require.True(t, ok)
}

func TestObserverRestoreNotifiesListeners(t *testing.T) {
	obs := NewObserver(&stubProvider{})
	var seen []*domain.UserIdentity
	obs.OnAuthStateChanged(func(identity *domain.UserIdentity) {
		seen = append(seen, identity)
	})

	obs.Restore(domain.UserIdentity{UID: "user-7", Email: "grace@example.com"})

	require.Len(t, seen, 2)
	require.Equal(t, "user-7", seen[1].UID)
	uid, ok := obs.UserID()
	require.True(t, ok)
	require.Equal(t, "user-7", uid)
}

func TestObserverNotifiesInWriteOrder(t *testing.T) {
	obs := NewObserver(&stubProvider{})

	var mu sync.Mutex
	var last *domain.UserIdentity
	obs.OnAuthStateChanged(func(identity *domain.UserIdentity) {
		mu.Lock()
		last = identity
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				obs.set(nil)
				return
			}
			obs.Restore(domain.UserIdentity{UID: fmt.Sprintf("user-%d", i)})
		}(i)
	}
	wg.Wait()

	current, ok := obs.Current()
	mu.Lock()
	defer mu.Unlock()
	if !ok {
		require.Nil(t, last)
		return
	}
	require.NotNil(t, last)
	require.Equal(t, current.UID, last.UID)
}
