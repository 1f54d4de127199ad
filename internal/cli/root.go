// Package cli implements the opsctl command tree.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/opsconsole/internal/app"
	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version string reported by "opsctl version".
func SetVersion(v string) {
	version = v
	app.BuildVersion = v
}

// ErrLoginRequired is returned by commands that need a session when there
// is none.
var ErrLoginRequired = errors.New("not logged in, run 'opsctl login' first")

// ErrAdminRequired is returned by admin commands for non-admin sessions.
var ErrAdminRequired = errors.New("admin role required")

type rootOptions struct {
	apiURL  string
	store   string
	verbose bool
	noColor bool

	app     *app.App
	printer *Printer
}

// NewRootCmd builds a fresh command tree. Each invocation gets its own
// state, which keeps tests independent.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "opsctl",
		Short: "Ops console command line client",
		Long: `opsctl talks to the ops console API with a persisted session.

Access tokens are refreshed transparently: concurrent requests that hit an
expired token share a single refresh and are replayed afterwards.

Example usage:
  opsctl login -u admin        # Log in and store the session
  opsctl whoami                # Show the logged-in user
  opsctl dashboard             # Fleet summary
  opsctl get /monitor/dashboard
  opsctl logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&o.apiURL, "api-url", "", "API base URL (default $OPS_API_URL or http://localhost:8080/api)")
	root.PersistentFlags().StringVar(&o.store, "store", "", "credential store: file, sqlite, redis or memory (default $OPS_STORE_DRIVER or file)")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose output, including session metrics on exit")
	root.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newLoginCmd(o),
		newLogoutCmd(o),
		newWhoamiCmd(o),
		newGetCmd(o),
		newDashboardCmd(o),
		newUsersCmd(o),
		newVersionCmd(),
	)
	o.finishAfter(root)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	o.printer = NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), ResolveColors(o.noColor))

	if cmd.Name() == "version" {
		return nil
	}

	cfg := app.LoadConfig()
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.store != "" {
		cfg.StoreDriver = o.store
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}

	a, err := app.New(cmd.Context(), cfg,
		app.WithLogOutput(cmd.ErrOrStderr()),
		app.WithNotifier(authclient.NotifierFunc(func(_ context.Context, cause error) {
			o.printer.Warning("session expired (%v), please log in again", cause)
		})),
	)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	o.app = a
	return nil
}

// finishAfter wraps every RunE under cmd so the app is released once the
// command returns. PersistentPostRunE would be skipped on failure.
func (o *rootOptions) finishAfter(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		o.finishAfter(sub)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if closeErr := o.finish(cmd); err == nil {
			err = closeErr
		}
		return err
	}
}

func (o *rootOptions) finish(cmd *cobra.Command) error {
	if o.app == nil {
		return nil
	}
	if o.verbose {
		if err := o.app.WriteMetrics(cmd.ErrOrStderr()); err != nil {
			o.app.Logger.Warn("metrics_write_failed", "error", err)
		}
	}
	return o.app.Close()
}

func (o *rootOptions) controller() *authclient.Controller { return o.app.Controller }

// guard maps authclient.Guard redirects onto command errors.
func (o *rootOptions) guard(route authclient.Route) error {
	switch authclient.Guard(o.controller(), route) {
	case authclient.LoginRoute:
		return ErrLoginRequired
	case authclient.LandingRoute:
		if route.RequiresAdmin {
			return ErrAdminRequired
		}
	}
	return nil
}

// explain rewrites session errors into something a user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, authsdk.ErrRefreshRejected),
		errors.Is(err, authsdk.ErrRefreshTimeout),
		errors.Is(err, authsdk.ErrAuthorizationExpired):
		return fmt.Errorf("session expired, run 'opsctl login' again: %w", err)
	case errors.Is(err, authsdk.ErrNotAuthenticated), errors.Is(err, authsdk.ErrLoggedOut):
		return ErrLoginRequired
	case errors.Is(err, authsdk.ErrTransport):
		return fmt.Errorf("cannot reach the API: %w", err)
	}
	return err
}
