// Package api exposes the fittrack screens as HTTP handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	authlib "example.com/fittrack/internal/platform/auth"
	"example.com/fittrack/internal/profile"
	"example.com/fittrack/internal/sensor"
	"example.com/fittrack/internal/tracking"
)

// Authenticator is the credential provider behind the auth endpoints.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (domain.UserIdentity, error)
	SignIn(ctx context.Context, email, password string) (domain.UserIdentity, error)
	SignOut(ctx context.Context) error
	IssueToken(identity domain.UserIdentity) (auth.Token, error)
}

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler coordinates HTTP requests with the member services and tracking sessions.
type Handler struct {
	auth     Authenticator
	profiles *profile.Service
	sessions *tracking.Registry
	logger   zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(authenticator Authenticator, profiles *profile.Service, sessions *tracking.Registry, opts ...Option) *Handler {
	h := &Handler{
		auth:     authenticator,
		profiles: profiles,
		sessions: sessions,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	r.HandleFunc("/v1/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/logout", h.logout).Methods(http.MethodPost)

	r.HandleFunc("/v1/dashboard", h.dashboard).Methods(http.MethodGet)
	r.HandleFunc("/v1/profile", h.getProfile).Methods(http.MethodGet)
	r.HandleFunc("/v1/profile/bio", h.updateBio).Methods(http.MethodPut)
	r.HandleFunc("/v1/profile/image", h.updateImage).Methods(http.MethodPut)
	r.HandleFunc("/v1/progress", h.progress).Methods(http.MethodGet)
	r.HandleFunc("/v1/goals", h.setGoal).Methods(http.MethodPost)
	r.HandleFunc("/v1/goals", h.listGoals).Methods(http.MethodGet)
	r.HandleFunc("/v1/activities", h.listActivities).Methods(http.MethodGet)

	r.HandleFunc("/v1/sessions", h.openSession).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}", h.getSession).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions/{id}", h.closeSession).Methods(http.MethodDelete)
	r.HandleFunc("/v1/sessions/{id}/start", h.startSession).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/stop", h.stopSession).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/save", h.saveSession).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/location", h.pushLocation).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/steps", h.pushSteps).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// member returns the subject of the request token when it carries one of scopes.
func member(w http.ResponseWriter, r *http.Request, scopes ...string) (string, bool) {
	claims, ok := authlib.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims.Subject, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return "", false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var authErr *domain.AuthError
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, "auth_failed", authErr.Message)
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, tracking.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tracking.ErrInvalidState),
		errors.Is(err, tracking.ErrSessionClosed),
		errors.Is(err, tracking.ErrStartInterrupted),
		errors.Is(err, sensor.ErrUnavailable):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrRemoteStore):
		h.logger.Error().Err(err).Msg("remote store failure")
		writeError(w, http.StatusBadGateway, "remote_store_error", err.Error())
	default:
		h.logger.Error().Stack().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
