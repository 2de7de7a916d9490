package client

import (
	"context"
	"net/http"
	"net/url"

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/domain"
)

// OpenSession mounts a tracking session for this device.
func (c *Client) OpenSession(ctx context.Context, locationGranted, pedometerAvailable bool) (api.SessionView, error) {
	permission := "denied"
	if locationGranted {
		permission = "granted"
	}
	var out api.SessionView
	err := c.do(ctx, http.MethodPost, "/v1/sessions", api.OpenSessionRequest{
		LocationPermission: permission,
		PedometerAvailable: pedometerAvailable,
	}, &out)
	return out, err
}

// Session reads a session.
func (c *Client) Session(ctx context.Context, id string) (api.SessionView, error) {
	var out api.SessionView
	err := c.do(ctx, http.MethodGet, sessionPath(id, ""), nil, &out)
	return out, err
}

// StartTracking starts the session.
func (c *Client) StartTracking(ctx context.Context, id string) (api.SessionView, error) {
	var out api.SessionView
	err := c.do(ctx, http.MethodPost, sessionPath(id, "/start"), nil, &out)
	return out, err
}

// StopTracking stops the session.
func (c *Client) StopTracking(ctx context.Context, id string) (api.SessionView, error) {
	var out api.SessionView
	err := c.do(ctx, http.MethodPost, sessionPath(id, "/stop"), nil, &out)
	return out, err
}

// Save saves the session from raw form values.
func (c *Client) Save(ctx context.Context, id, activityType, duration string) (api.SaveResponse, error) {
	var out api.SaveResponse
	err := c.do(ctx, http.MethodPost, sessionPath(id, "/save"), api.SaveRequest{ActivityType: activityType, Duration: duration}, &out)
	return out, err
}

// CloseSession unmounts the session.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
}

// PushLocation reports a device location fix.
func (c *Client) PushLocation(ctx context.Context, id string, fix domain.Coordinates) (api.SessionView, error) {
	var out api.SessionView
	err := c.do(ctx, http.MethodPost, sessionPath(id, "/location"), fix, &out)
	return out, err
}

// PushSteps reports the device's cumulative pedometer total.
func (c *Client) PushSteps(ctx context.Context, id string, total int) (api.SessionView, error) {
	var out api.SessionView
	err := c.do(ctx, http.MethodPost, sessionPath(id, "/steps"), api.StepsRequest{Steps: total}, &out)
	return out, err
}

func sessionPath(id, suffix string) string {
	return "/v1/sessions/" + url.PathEscape(id) + suffix
}
