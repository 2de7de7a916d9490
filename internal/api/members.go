package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	authlib "example.com/fittrack/internal/platform/auth"
)

// RegisterRequest is the payload for POST /v1/auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginRequest is the payload for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a bearer token for the signed-in member.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	identity, err := h.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if _, err := h.profiles.Register(r.Context(), identity, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSession(w, http.StatusCreated, identity)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	identity, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, identity)
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, identity domain.UserIdentity) {
	token, err := h.auth.IssueToken(identity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, status, SessionResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		UID:       identity.UID,
		Email:     identity.Email,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := authlib.FromContext(r.Context()); !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.auth.SignOut(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeProfileRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.profiles.Dashboard(r.Context(), uid))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeProfileRead, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	view, err := h.profiles.Profile(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if session, ok := h.sessions.Latest(uid); ok {
		if position, err := session.Feed.CurrentPosition(r.Context()); err == nil {
			view.Location = &position
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// BioRequest is the payload for PUT /v1/profile/bio.
type BioRequest struct {
	Bio string `json:"bio"`
}

func (h *Handler) updateBio(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}
	var req BioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.profiles.UpdateBio(r.Context(), uid, req.Bio); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImageRequest is the payload for PUT /v1/profile/image.
type ImageRequest struct {
	URI string `json:"uri"`
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}
	var req ImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.profiles.UpdateProfileImage(r.Context(), uid, req.URI); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProgressResponse wraps the member's progressData.
type ProgressResponse struct {
	ProgressData map[string]any `json:"progressData"`
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeProfileRead)
	if !ok {
		return
	}
	data, err := h.profiles.Progress(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProgressResponse{ProgressData: data})
}

// GoalRequest is the payload for POST /v1/goals. GoalValue may be a JSON
// number or the raw text typed into the form.
type GoalRequest struct {
	GoalType  string `json:"goalType"`
	GoalValue any    `json:"goalValue"`
}

// GoalView is a stored goal.
type GoalView struct {
	ID        string  `json:"id"`
	GoalType  string  `json:"goalType"`
	GoalValue float64 `json:"goalValue"`
	Timestamp string  `json:"timestamp"`
}

// GoalsResponse lists goals newest first.
type GoalsResponse struct {
	Items []GoalView `json:"items"`
}

func (h *Handler) setGoal(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeGoalsWrite)
	if !ok {
		return
	}
	var req GoalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	goal, err := h.profiles.SetGoal(r.Context(), uid, req.GoalType, formValue(req.GoalValue))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalView(goal))
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeGoalsRead, auth.ScopeGoalsWrite)
	if !ok {
		return
	}
	goals, err := h.profiles.Goals(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := GoalsResponse{Items: make([]GoalView, 0, len(goals))}
	for _, goal := range goals {
		resp.Items = append(resp.Items, toGoalView(goal))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	uid, ok := member(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.profiles.Accessor().ListActivities(r.Context(), uid, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func toGoalView(goal domain.GoalSetting) GoalView {
	return GoalView{
		ID:        goal.ID,
		GoalType:  string(goal.GoalType),
		GoalValue: goal.GoalValue,
		Timestamp: domain.FormatTimestamp(goal.Timestamp),
	}
}

// formValue renders a JSON scalar as the text a form field would hold.
func formValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
