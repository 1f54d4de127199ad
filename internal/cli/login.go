package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/spf13/cobra"
)

func newLoginCmd(o *rootOptions) *cobra.Command {
	var (
		username string
		password string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Long: `Log in with a username and password. The password is read from the first
line of stdin when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := o.controller()
			ctx := cmd.Context()

			if authclient.Guard(ctrl, authclient.Route{Path: authclient.LoginRoute}) == authclient.LandingRoute && !force {
				name := "an unknown user"
				if identity := ctrl.CurrentIdentity(); identity != nil {
					name = identity.Username
				}
				o.printer.Info("already logged in as %s (use --force to switch user)", name)
				return nil
			}

			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			identity, err := ctrl.Login(ctx, username, password)
			if errors.Is(err, authsdk.ErrCredentialsInvalid) {
				return errors.New("invalid username or password")
			}
			if err != nil {
				return explain(err)
			}

			o.printer.Success("logged in as %s (%s)", identity.Username, identity.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	cmd.Flags().BoolVar(&force, "force", false, "log in even when a session exists")
	return cmd
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := o.controller()
			if !ctrl.IsAuthenticated() {
				o.printer.Info("not logged in")
				return nil
			}
			ctrl.Logout(cmd.Context())
			o.printer.Success("logged out")
			return nil
		},
	}
}
