package cli

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/spf13/cobra"
)

func newUsersCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List user accounts (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.guard(authclient.Route{Path: "/users", RequiresAuth: true, RequiresAdmin: true}); err != nil {
				return err
			}

			var users []authsdk.Identity
			if err := o.controller().Client().Do(cmd.Context(), http.MethodGet, authsdk.PathUsers, nil, &users); err != nil {
				return explain(err)
			}

			rows := make([][]string, 0, len(users))
			for _, u := range users {
				status := "active"
				if u.Status == 0 {
					status = "disabled"
				}
				rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Username, u.Email, string(u.Role), status})
			}
			o.printer.Table([]string{"id", "username", "email", "role", "status"}, rows)
			return nil
		},
	}
}
