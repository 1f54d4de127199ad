package cli

import (
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/spf13/cobra"
)

func newWhoamiCmd(o *rootOptions) *cobra.Command {
	var (
		refresh    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.guard(authclient.Route{Path: "/profile", RequiresAuth: true}); err != nil {
				return err
			}
			ctrl := o.controller()

			identity := ctrl.CurrentIdentity()
			if refresh || identity == nil {
				fresh, err := ctrl.RefreshProfile(cmd.Context())
				if err != nil {
					return explain(err)
				}
				identity = fresh
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(identity)
			}

			o.printer.Print("user:   %s", identity.Username)
			o.printer.Print("email:  %s", identity.Email)
			o.printer.Print("role:   %s", identity.Role)
			if exp := ctrl.Credential().ExpiresAt; exp != nil {
				o.printer.Print("token:  expires %s", exp.Local().Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-read the profile from the server")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
