package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(tokenID string) bool
}

// Middleware provides HTTP middleware for bearer-token validation.
type Middleware struct {
	Config  Config
	Skipper Skipper
	Revoked RevocationChecker
}

// NewMiddleware constructs a middleware with optional skipper and revocation checker.
func NewMiddleware(cfg Config, skipper Skipper, revoked RevocationChecker) Middleware {
	return Middleware{Config: cfg, Skipper: skipper, Revoked: revoked}
}

// Wrap rejects requests without a valid, unrevoked bearer token and stores
// the claims of accepted ones on the request context.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r.Header.Get("Authorization"))
		var claims *Claims
		if err == nil {
			claims, err = Parse(token, m.Config)
		}
		if err == nil && m.Revoked != nil && claims.ID != "" && m.Revoked.IsRevoked(claims.ID) {
			err = ErrRevokedToken
		}
		if err != nil {
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fittrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":   "unauthenticated",
		"detail": err.Error(),
	})
}
