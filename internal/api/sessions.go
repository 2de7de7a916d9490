package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/sensor"
	"example.com/fittrack/internal/tracking"
)

// OpenSessionRequest declares what the device granted when the TrackActivity screen mounted.
type OpenSessionRequest struct {
	LocationPermission string `json:"locationPermission"`
	PedometerAvailable bool   `json:"pedometerAvailable"`
}

// SessionView is a tracking session as rendered to the device.
type SessionView struct {
	ID          string                `json:"id"`
	OpenedAt    time.Time             `json:"openedAt"`
	Permissions *tracking.Permissions `json:"permissions,omitempty"`
	Notice      string                `json:"notice,omitempty"`
	LastFixAt   *time.Time            `json:"lastFixAt,omitempty"`
	tracking.View
}

// SaveRequest is the payload for POST /v1/sessions/{id}/save. Duration may be
// a JSON number or the raw text typed into the form.
type SaveRequest struct {
	ActivityType string `json:"activityType"`
	Duration     any    `json:"duration"`
}

// SaveResponse is the record written by a save.
type SaveResponse struct {
	Key    string                `json:"key"`
	Record domain.ActivityRecord `json:"record"`
}

// StepsRequest carries the device's cumulative pedometer total.
type StepsRequest struct {
	Steps int `json:"steps"`
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	var req OpenSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	permission := sensor.PermissionStatus(strings.ToLower(strings.TrimSpace(req.LocationPermission)))
	if permission != sensor.PermissionGranted {
		permission = sensor.PermissionDenied
	}

	session := h.sessions.Open(uid, sensor.FeedOptions{
		LocationPermission: permission,
		PedometerAvailable: req.PedometerAvailable,
	})

	view := sessionView(session)
	perms, err := session.Manager.Initialize(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPermissionDenied):
		view.Notice = err.Error()
	default:
		h.logger.Warn().Err(err).Str("session_id", session.ID).Msg("initialize tracking failed")
		view.Notice = "failed to initialize activity tracking"
	}
	view.Permissions = &perms
	view.View = session.Manager.View()
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request, scopes ...string) (*tracking.Session, bool) {
	uid, ok := member(w, r, scopes...)
	if !ok {
		return nil, false
	}
	session, err := h.sessions.Get(mux.Vars(r)["id"], uid)
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	if err := h.sessions.Close(mux.Vars(r)["id"], uid); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	if err := session.Manager.StartTracking(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) stopSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	session.Manager.StopTracking()
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) saveSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	var req SaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := session.Manager.SaveForm(r.Context(), req.ActivityType, formValue(req.Duration))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SaveResponse{Key: result.Key, Record: result.Record})
}

func (h *Handler) pushLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	var fix domain.Coordinates
	if !decodeBody(w, r, &fix) {
		return
	}
	if err := session.Feed.PushLocation(fix); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionView(session))
}

func (h *Handler) pushSteps(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	var req StepsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := session.Feed.PushSteps(req.Steps); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionView(session))
}

func sessionView(session *tracking.Session) SessionView {
	view := SessionView{
		ID:       session.ID,
		OpenedAt: session.OpenedAt,
		View:     session.Manager.View(),
	}
	if at := session.Feed.LastFixAt(); !at.IsZero() {
		view.LastFixAt = &at
	}
	return view
}
