// Package auth implements member sign up, sign in and sign out against the
// credentials collection, and the bearer-token middleware of the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence"
	authlib "example.com/fittrack/internal/platform/auth"
)

// CredentialsCollection stores one document per normalized email.
const CredentialsCollection = "credentials"

// MinPasswordLength is the shortest password accepted at sign up.
const MinPasswordLength = 6

const (
	msgCredentialsRequired = "email and password are required"
	msgInvalidEmail        = "invalid email address"
	msgEmailInUse          = "email address is already in use"
	msgInvalidCredentials  = "invalid email or password"
)

// Token is a signed bearer token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Option configures optional behaviour for the Authenticator.
type Option func(*Authenticator)

// WithLogger overrides the authenticator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithClock overrides the clock used for token issue times.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(a *Authenticator) {
		a.cost = cost
	}
}

// Authenticator is the server-side auth provider.
type Authenticator struct {
	store   persistence.Store
	cfg     authlib.Config
	ttl     time.Duration
	revoked *Revocations
	logger  zerolog.Logger
	now     func() time.Time
	cost    int

	signUpMu sync.Mutex
}

// NewAuthenticator constructs an Authenticator issuing tokens valid for ttl.
func NewAuthenticator(store persistence.Store, cfg authlib.Config, ttl time.Duration, opts ...Option) *Authenticator {
	a := &Authenticator{
		store:   store,
		cfg:     cfg,
		ttl:     ttl,
		revoked: NewRevocations(),
		logger:  zerolog.Nop(),
		now:     time.Now,
		cost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Revocations exposes the signed-out token list for the middleware.
func (a *Authenticator) Revocations() *Revocations {
	return a.revoked
}

// SignUp creates credentials for email.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (domain.UserIdentity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.UserIdentity{}, domain.NewValidationError("credentials", msgCredentialsRequired)
	}
	if !strings.Contains(email, "@") {
		return domain.UserIdentity{}, &domain.AuthError{Message: msgInvalidEmail}
	}
	if len(password) < MinPasswordLength {
		return domain.UserIdentity{}, domain.NewValidationError("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("hash password: %w", err)
	}

	a.signUpMu.Lock()
	defer a.signUpMu.Unlock()

	_, err = a.store.Read(ctx, CredentialsCollection, email)
	switch {
	case err == nil:
		return domain.UserIdentity{}, &domain.AuthError{Message: msgEmailInUse}
	case !errors.Is(err, persistence.ErrNotFound):
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", domain.ErrRemoteStore, err)
	}

	identity := domain.UserIdentity{UID: uuid.NewString(), Email: email}
	fields := map[string]any{
		"uid":          identity.UID,
		"email":        email,
		"passwordHash": string(hash),
		"createdAt":    domain.FormatTimestamp(a.now()),
	}
	if err := a.store.Write(ctx, CredentialsCollection, email, fields, false); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", domain.ErrRemoteStore, err)
	}
	a.logger.Info().Str("user_id", identity.UID).Msg("credentials created")
	return identity, nil
}

// SignIn verifies email and password.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (domain.UserIdentity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.UserIdentity{}, domain.NewValidationError("credentials", msgCredentialsRequired)
	}

	doc, err := a.store.Read(ctx, CredentialsCollection, email)
	if errors.Is(err, persistence.ErrNotFound) {
		return domain.UserIdentity{}, &domain.AuthError{Message: msgInvalidCredentials}
	}
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", domain.ErrRemoteStore, err)
	}

	hash, _ := doc.Fields["passwordHash"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		a.logger.Debug().Str("email", email).Msg("password mismatch")
		return domain.UserIdentity{}, &domain.AuthError{Message: msgInvalidCredentials}
	}
	uid, _ := doc.Fields["uid"].(string)
	return domain.UserIdentity{UID: uid, Email: email}, nil
}

// IssueToken signs a member token for identity.
func (a *Authenticator) IssueToken(identity domain.UserIdentity) (Token, error) {
	value, claims, err := authlib.Issue(a.cfg, identity.UID, identity.Email, MemberScopes, a.ttl, a.now())
	if err != nil {
		return Token{}, err
	}
	return Token{Value: value, ExpiresAt: claims.ExpiresAt}, nil
}

// SignOut revokes the token carried by ctx. Without one it does nothing.
func (a *Authenticator) SignOut(ctx context.Context) error {
	claims, ok := authlib.FromContext(ctx)
	if !ok {
		return nil
	}
	a.revoked.Revoke(claims.ID, claims.ExpiresAt)
	a.logger.Info().Str("user_id", claims.Subject).Msg("signed out")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
