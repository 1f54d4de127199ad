/*
Package authclient is the authenticated request pipeline of the ops console.

A Controller owns one Session and builds the Client and Coordinator around
it:

	ctrl := authclient.New(authclient.Config{BaseURL: "http://localhost:8080/api"})
	ctrl.Restore(ctx)
	if !ctrl.IsAuthenticated() {
		_, err := ctrl.Login(ctx, "admin", "admin123")
	}
	var out Dashboard
	err := ctrl.Client().Do(ctx, http.MethodGet, "/monitor/dashboard", nil, &out)

Client.Execute attaches the access token. When a request comes back 401 the
Coordinator makes sure only one refresh call is in flight: the first request
to see the 401 starts it and every other request that fails meanwhile queues
behind it. After a successful refresh the queued requests are replayed in
arrival order with the new token. A rejected refresh logs the session out
once and fails every queued request with authsdk.ErrRefreshRejected.
*/
package authclient
