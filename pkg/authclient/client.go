package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
)

// Client is the authenticated request pipeline. Every API call goes through
// Execute, which attaches the current access token and hands 401s to the
// Coordinator.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	coord   *Coordinator
	logger  *slog.Logger
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Execute sends req and returns its response. Any status other than 401 is
// returned unchanged, errors included; transport failures are wrapped with
// authsdk.ErrTransport and never retried. A 401 on an authenticated request
// goes through the refresh protocol and the request is replayed once with
// the new token.
func (c *Client) Execute(ctx context.Context, req *Request) (*http.Response, error) {
	snap := c.session.Snapshot()
	resp, err := c.send(ctx, req, snap, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	authsdk.DrainAndClose(resp)

	switch req.endpoint() {
	case authsdk.PathRefresh:
		return nil, fmt.Errorf("%w: refresh endpoint answered 401", authsdk.ErrRefreshRejected)
	case authsdk.PathLogin:
		return nil, authsdk.ErrCredentialsInvalid
	}

	if !snap.IsAuthenticated() {
		return nil, fmt.Errorf("%w: %s %s answered 401", authsdk.ErrNotAuthenticated, req.Method, req.Path)
	}

	return c.coord.AwaitRefreshThenRetry(ctx, req, snap)
}

// Do is the JSON form of Execute. in is encoded as the request body when
// non-nil and the envelope data of the response is decoded into out. API
// failures come back as *authsdk.APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = raw
	}

	resp, err := c.Execute(ctx, NewRequest(method, path, body))
	if err != nil {
		return err
	}
	return authsdk.DecodeEnvelope(resp, out)
}

// send performs one attempt with the token held in snap. issued, when set,
// runs right before the request is handed to the transport.
func (c *Client) send(ctx context.Context, req *Request, snap Snapshot, issued func()) (*http.Response, error) {
	httpReq, err := req.build(ctx, c.baseURL, snap.Credential.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if issued != nil {
		issued()
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", authsdk.ErrTransport, req.Method, req.Path, err)
	}
	return resp, nil
}

// replay is the Coordinator's way back in. It only sends while the session
// is still at epoch, and a second 401 is final.
func (c *Client) replay(ctx context.Context, req *Request, epoch uint64, issued func()) (*http.Response, error) {
	snap := c.session.Snapshot()
	if snap.Epoch != epoch || !snap.IsAuthenticated() {
		return nil, loggedOut(req)
	}

	resp, err := c.send(ctx, req, snap, issued)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		authsdk.DrainAndClose(resp)
		return nil, fmt.Errorf("%w: %s %s rejected after token refresh", authsdk.ErrAuthorizationExpired, req.Method, req.Path)
	}
	return resp, nil
}
