// Package auth issues and validates the HS256 bearer tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds signer parameters.
type Config struct {
	Secret string
	Issuer string
}

// Claims represents the payload extracted from a JWT.
type Claims struct {
	ID        string
	Subject   string
	Email     string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

// HasScope reports whether the claim set includes the provided scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps parsing and validation errors.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrRevokedToken is returned for tokens that were signed out.
	ErrRevokedToken = errors.New("bearer token revoked")
)

// tokenClaims is the wire form. Scopes are space delimited as in OAuth.
type tokenClaims struct {
	Email  string `json:"email,omitempty"`
	Scopes string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for subject valid for ttl from now.
func Issue(cfg Config, subject, email string, scopes []string, ttl time.Duration, now time.Time) (string, *Claims, error) {
	switch {
	case subject == "":
		return "", nil, errors.New("subject is required")
	case cfg.Secret == "":
		return "", nil, errors.New("signing secret is required")
	}

	expires := now.Add(ttl).Truncate(time.Second)
	wire := tokenClaims{
		Email:  email,
		Scopes: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, wire.claims(), nil
}

// Parse validates a JWT and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var wire tokenClaims
	_, err := jwt.ParseWithClaims(token, &wire, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if wire.Subject == "" {
		return nil, ErrInvalidToken
	}
	return wire.claims(), nil
}

func (w tokenClaims) claims() *Claims {
	scopes := make(map[string]struct{})
	for _, scope := range strings.Fields(w.Scopes) {
		scopes[scope] = struct{}{}
	}
	c := &Claims{
		ID:      w.ID,
		Subject: w.Subject,
		Email:   w.Email,
		Scopes:  scopes,
	}
	if w.ExpiresAt != nil {
		c.ExpiresAt = w.ExpiresAt.Time
	}
	return c
}
