package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/fittrack/internal/client"
	"example.com/fittrack/internal/domain"
)

const metersPerDegreeLatitude = 111_320.0

type trackOptions struct {
	activityType string
	duration     string
	steps        int
	points       int
	latitude     float64
	longitude    float64
	spacing      float64
	pedometer    bool
	denyLocation bool
	interval     time.Duration
}

func newTrackCmd(opts *cliOptions) *cobra.Command {
	var t trackOptions
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Simulate a device tracking an activity and save it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := runTrack(cmd.Context(), opts.client(), t, func(format string, args ...any) {
				fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
			})
			if err != nil {
				return err
			}
			return opts.print(result)
		},
	}
	cmd.Flags().StringVar(&t.activityType, "type", "Running", "activity type")
	cmd.Flags().StringVar(&t.duration, "duration", "30", "duration in minutes")
	cmd.Flags().IntVar(&t.steps, "steps", 3000, "pedometer total reached at the end of the route")
	cmd.Flags().IntVar(&t.points, "points", 5, "number of location fixes along the route")
	cmd.Flags().Float64Var(&t.latitude, "lat", 40.0, "starting latitude")
	cmd.Flags().Float64Var(&t.longitude, "lon", -73.0, "starting longitude")
	cmd.Flags().Float64Var(&t.spacing, "spacing", 150, "meters between fixes")
	cmd.Flags().BoolVar(&t.pedometer, "pedometer", true, "device has a pedometer")
	cmd.Flags().BoolVar(&t.denyLocation, "deny-location", false, "simulate a denied location permission")
	cmd.Flags().DurationVar(&t.interval, "interval", 0, "pause between fixes")
	return cmd
}

func runTrack(ctx context.Context, c *client.Client, t trackOptions, logf func(string, ...any)) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.points <= 0 {
		t.points = 1
	}

	session, err := c.OpenSession(ctx, !t.denyLocation, t.pedometer)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.CloseSession(context.Background(), session.ID); err != nil {
			logf("close session: %v", err)
		}
	}()
	if session.Notice != "" {
		logf("%s", session.Notice)
	}
	for _, warning := range session.Warnings {
		logf("warning: %s", warning)
	}

	if _, err := c.StartTracking(ctx, session.ID); err != nil {
		return nil, err
	}

	for i := 0; i < t.points; i++ {
		fix := domain.Coordinates{
			Latitude:  t.latitude + float64(i)*t.spacing/metersPerDegreeLatitude,
			Longitude: t.longitude,
		}
		if _, err := c.PushLocation(ctx, session.ID, fix); err != nil {
			return nil, err
		}
		if t.pedometer {
			view, err := c.PushSteps(ctx, session.ID, t.steps*(i+1)/t.points)
			if err != nil {
				return nil, err
			}
			logf("fix %d/%d: %.5f,%.5f steps=%d", i+1, t.points, fix.Latitude, fix.Longitude, view.CurrentSteps)
		}
		if t.interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(t.interval):
			}
		}
	}

	return c.Save(ctx, session.ID, t.activityType, t.duration)
}
