/*
Package authsdk is the boundary to the ops console authentication service.

# Overview

SDKClient wraps the four authentication endpoints:

	client := authsdk.NewSDKClient("http://localhost:8080/api")

	cred, identity, err := client.Login(ctx, "admin", "admin123")
	cred, err = client.Refresh(ctx, cred.RefreshToken)
	identity, err = client.Profile(ctx, cred.AccessToken)
	err = client.Logout(ctx, cred.AccessToken)

SDKClient never stores tokens. Session state, the single-flight refresh and
request replay live in package authclient, which uses SDKClient for the
refresh call so that call can never recurse into the refresh pipeline.

# Envelope

Every response body has the shape {code, message, data}. DecodeEnvelope
unwraps data on success and returns an *APIError when either the HTTP status
is not 2xx or the envelope code is not 200.

# Error Handling

Errors are classified with sentinels, matched with errors.Is:

  - ErrTransport: network, DNS or timeout failures (never retried)
  - ErrAuthorizationExpired: a 401 on a regular API call
  - ErrRefreshRejected: the refresh call itself was refused (terminal)
  - ErrCredentialsInvalid: the login call was refused
  - ErrStorageUnavailable: credential persistence failed (non-fatal)
  - ErrRefreshTimeout, ErrNotAuthenticated, ErrLoggedOut: pipeline outcomes

Server supplied details are available through errors.As with *APIError:

	_, _, err := client.Login(ctx, "admin", "wrong")
	var apiErr *authsdk.APIError
	if errors.Is(err, authsdk.ErrCredentialsInvalid) && errors.As(err, &apiErr) {
		fmt.Println(apiErr.Message)
	}
*/
package authsdk
