package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"example.com/fittrack/internal/authsession"
	"example.com/fittrack/internal/client"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/profile"
)

type cliOptions struct {
	api   string
	token string
	out   io.Writer

	conn *client.Client
	obs  *authsession.Observer
}

// client is built on first use, after flags are parsed.
func (o *cliOptions) client() *client.Client {
	if o.conn == nil {
		o.conn = client.New(o.api, client.WithToken(o.token))
	}
	return o.conn
}

// session tracks who is signed in through the client and caches their profile.
func (o *cliOptions) session() *authsession.Observer {
	if o.obs == nil {
		o.obs = authsession.NewObserver(o.client())
	}
	return o.obs
}

// resume signs the session in from the bearer token and refreshes the
// cached profile fields.
func (o *cliOptions) resume(ctx context.Context) (profile.View, error) {
	view, err := o.client().Profile(ctx)
	if err != nil {
		return profile.View{}, err
	}
	obs := o.session()
	if uid, ok := obs.UserID(); !ok || uid != view.UID {
		obs.Restore(domain.UserIdentity{UID: view.UID, Email: view.Email})
	}
	image := ""
	if view.ProfileImage != nil {
		image = *view.ProfileImage
	}
	obs.Cache().Store(view.FirstName, view.Bio, image)
	return view, nil
}

func (o *cliOptions) print(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *cliOptions) printSession() error {
	identity, ok := o.session().Current()
	if !ok {
		return errors.New("not signed in")
	}
	return o.print(map[string]string{"uid": identity.UID, "email": identity.Email, "token": o.client().Token()})
}

func newRootCmd(out io.Writer) *cobra.Command {
	return newRootCommand(&cliOptions{out: out})
}

func newRootCommand(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "fittrackctl",
		Short:         "Device simulator and CLI client for the fittrack API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.out)
	root.PersistentFlags().StringVarP(&opts.api, "api", "a", envOr("FITTRACK_API", "http://localhost:8080"), "fittrack API base URL")
	root.PersistentFlags().StringVarP(&opts.token, "token", "t", os.Getenv("FITTRACK_TOKEN"), "bearer token (or FITTRACK_TOKEN)")

	root.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newDashboardCmd(opts),
		newProfileCmd(opts),
		newProgressCmd(opts),
		newGoalsCmd(opts),
		newActivitiesCmd(opts),
		newTrackCmd(opts),
	)
	return root
}

func newRegisterCmd(opts *cliOptions) *cobra.Command {
	var first, last, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and print its token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, err := opts.client().Register(cmd.Context(), first, last, email, password)
			if err != nil {
				return err
			}
			opts.session().Restore(identity)
			return opts.printSession()
		},
	}
	cmd.Flags().StringVar(&first, "first", "", "first name")
	cmd.Flags().StringVar(&last, "last", "", "last name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(opts *cliOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.session().SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			return opts.printSession()
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token and forget the cached profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			obs := opts.session()
			if _, ok := obs.UserID(); !ok && opts.client().Token() != "" {
				if _, err := opts.resume(cmd.Context()); err != nil {
					if errors.Is(err, domain.ErrUnauthenticated) {
						return nil
					}
					return err
				}
			}
			return obs.SignOut(cmd.Context())
		},
	}
}

func newDashboardCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard greeting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.resume(cmd.Context()); err != nil {
				return err
			}
			dashboard, err := opts.client().Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(opts.out, "Welcome, %s!\n", dashboard.DisplayName)
			return err
		},
	}
}

func newProfileCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := opts.resume(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(view)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "bio TEXT",
		Short: "Update the bio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().UpdateBio(cmd.Context(), args[0])
		},
	}, &cobra.Command{
		Use:   "image URI",
		Short: "Update the profile image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().UpdateProfileImage(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newProgressCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show progress data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().Progress(cmd.Context())
			if err != nil {
				return err
			}
			if len(data) == 0 {
				_, err = fmt.Fprintln(opts.out, "No progress data available.")
				return err
			}
			return opts.print(data)
		},
	}
}

func newGoalsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			goals, err := opts.client().Goals(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(goals)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set TYPE VALUE",
		Short: "Set a goal (Steps, Calories, Distance, WorkoutDuration)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := opts.client().SetGoal(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return opts.print(goal)
		},
	})
	return cmd
}

func newActivitiesCmd(opts *cliOptions) *cobra.Command {
	var cursor string
	var limit int
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List recorded activities, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := opts.client().Activities(cmd.Context(), cursor, limit)
			if err != nil {
				return err
			}
			return opts.print(page)
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
