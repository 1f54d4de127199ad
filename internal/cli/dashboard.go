package cli

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newDashboardCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the fleet summary, alerts and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.guard(authclient.Route{Path: authclient.LandingRoute, RequiresAuth: true}); err != nil {
				return err
			}
			ctrl := o.controller()

			// The dashboard and the profile load in parallel; after a token
			// expiry both share one refresh.
			var (
				dash     authsdk.DashboardData
				identity *authsdk.Identity
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return ctrl.Client().Do(ctx, http.MethodGet, authsdk.PathDashboard, nil, &dash)
			})
			g.Go(func() error {
				var err error
				identity, err = ctrl.RefreshProfile(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return explain(err)
			}

			p := o.printer
			p.Info("signed in as %s (%s)", identity.Username, identity.Role)

			p.Header("Servers")
			p.Print("total %d, online %d, offline %d",
				dash.Stats.TotalServers, dash.Stats.OnlineServers, dash.Stats.OfflineServers)

			if len(dash.Alerts) > 0 {
				p.Header("Alerts")
				for _, a := range dash.Alerts {
					p.Print("%s %s  %s", a.Time.Local().Format(time.Kitchen), p.Level(a.Level), a.Message)
				}
			}

			if len(dash.RecentActivities) > 0 {
				p.Header("Recent activity")
				rows := make([][]string, 0, len(dash.RecentActivities))
				for _, a := range dash.RecentActivities {
					rows = append(rows, []string{
						strconv.FormatInt(a.ID, 10), a.Type, a.Status, a.Description,
					})
				}
				p.Table([]string{"id", "type", "status", "description"}, rows)
			}
			return nil
		},
	}
}
