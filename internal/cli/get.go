package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/spf13/cobra"
)

func newGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "GET an API path and print the response data",
		Long: `GET an API path relative to the base URL through the authenticated
client and print the "data" of the response envelope as JSON.`,
		Example: "  opsctl get /monitor/dashboard",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.guard(authclient.Route{Path: args[0], RequiresAuth: true}); err != nil {
				return err
			}

			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			var data json.RawMessage
			if err := o.controller().Client().Do(cmd.Context(), http.MethodGet, path, nil, &data); err != nil {
				return explain(err)
			}

			var pretty bytes.Buffer
			if len(data) == 0 {
				data = json.RawMessage("null")
			}
			if err := json.Indent(&pretty, data, "", "  "); err != nil {
				return fmt.Errorf("failed to format response: %w", err)
			}
			o.printer.Print("%s", pretty.String())
			return nil
		},
	}
}
