// Package client is a Go SDK for the fittrack HTTP API. A Client holds the
// bearer token of the member it signed in and implements the auth provider
// contract remotely.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/profile"
	"example.com/fittrack/internal/tracking"
)

// APIError is a non-2xx response in the {type, detail} shape.
type APIError struct {
	Status int
	Type   string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Type, e.Detail)
}

// Is maps response types back onto the domain error taxonomy.
func (e *APIError) Is(target error) bool {
	switch e.Type {
	case "validation_failed", "invalid_request":
		return target == domain.ErrValidation
	case "auth_failed":
		return target == domain.ErrAuth
	case "unauthenticated", "unauthorized":
		return target == domain.ErrUnauthenticated
	case "permission_denied":
		return target == domain.ErrPermissionDenied
	case "not_found":
		return target == domain.ErrNotFound
	case "invalid_state":
		return target == tracking.ErrInvalidState
	case "remote_store_error":
		return target == domain.ErrRemoteStore
	}
	return false
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithToken starts the client signed in with an existing bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// Client calls the fittrack API.
type Client struct {
	http *resty.Client

	mu       sync.RWMutex
	token    string
	identity *domain.UserIdentity
}

// New constructs a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token of the signed-in member.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Identity returns the signed-in member, if any.
func (c *Client) Identity() (domain.UserIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return domain.UserIdentity{}, false
	}
	return *c.identity, true
}

// Register creates an account with a member profile and signs in.
func (c *Client) Register(ctx context.Context, firstName, lastName, email, password string) (domain.UserIdentity, error) {
	var out api.SessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/register", api.RegisterRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
	}, &out)
	if err != nil {
		return domain.UserIdentity{}, err
	}
	return c.signedIn(out), nil
}

// SignUp registers without names.
func (c *Client) SignUp(ctx context.Context, email, password string) (domain.UserIdentity, error) {
	return c.Register(ctx, "", "", email, password)
}

// SignIn exchanges credentials for a token.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.UserIdentity, error) {
	var out api.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", api.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return domain.UserIdentity{}, err
	}
	return c.signedIn(out), nil
}

// SignOut revokes the current token. Without one it does nothing.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
	if err != nil && !errors.Is(err, domain.ErrUnauthenticated) {
		return err
	}
	c.mu.Lock()
	c.token = ""
	c.identity = nil
	c.mu.Unlock()
	return nil
}

func (c *Client) signedIn(resp api.SessionResponse) domain.UserIdentity {
	identity := domain.UserIdentity{UID: resp.UID, Email: resp.Email}
	c.mu.Lock()
	c.token = resp.Token
	c.identity = &identity
	c.mu.Unlock()
	return identity
}

// Dashboard returns the greeting.
func (c *Client) Dashboard(ctx context.Context) (profile.Dashboard, error) {
	var out profile.Dashboard
	err := c.do(ctx, http.MethodGet, "/v1/dashboard", nil, &out)
	return out, err
}

// Profile returns the profile screen.
func (c *Client) Profile(ctx context.Context) (profile.View, error) {
	var out profile.View
	err := c.do(ctx, http.MethodGet, "/v1/profile", nil, &out)
	return out, err
}

// UpdateBio sets the member bio.
func (c *Client) UpdateBio(ctx context.Context, bio string) error {
	return c.do(ctx, http.MethodPut, "/v1/profile/bio", api.BioRequest{Bio: bio}, nil)
}

// UpdateProfileImage sets the member image URI.
func (c *Client) UpdateProfileImage(ctx context.Context, uri string) error {
	return c.do(ctx, http.MethodPut, "/v1/profile/image", api.ImageRequest{URI: uri}, nil)
}

// Progress returns the member's progressData.
func (c *Client) Progress(ctx context.Context) (map[string]any, error) {
	var out api.ProgressResponse
	if err := c.do(ctx, http.MethodGet, "/v1/progress", nil, &out); err != nil {
		return nil, err
	}
	return out.ProgressData, nil
}

// SetGoal records a goal from raw form values.
func (c *Client) SetGoal(ctx context.Context, goalType, goalValue string) (api.GoalView, error) {
	var out api.GoalView
	err := c.do(ctx, http.MethodPost, "/v1/goals", api.GoalRequest{GoalType: goalType, GoalValue: goalValue}, &out)
	return out, err
}

// Goals lists the member's goals, newest first.
func (c *Client) Goals(ctx context.Context) ([]api.GoalView, error) {
	var out api.GoalsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/goals", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Activities returns one page of activity history.
func (c *Client) Activities(ctx context.Context, cursor string, limit int) (profile.ActivityPage, error) {
	var out profile.ActivityPage
	req := c.request(ctx).SetResult(&out)
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get("/v1/activities")
	if err := check(resp, err); err != nil {
		return profile.ActivityPage{}, err
	}
	return out, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetError(&apiErrorBody{})
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.request(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	return check(resp, err)
}

type apiErrorBody struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("fittrack request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode(), Type: "http_error", Detail: resp.String()}
	if body, ok := resp.Error().(*apiErrorBody); ok && body.Type != "" {
		apiErr.Type = body.Type
		apiErr.Detail = body.Detail
	}
	if apiErr.Type == "auth_failed" {
		return &domain.AuthError{Message: apiErr.Detail}
	}
	return apiErr
}
