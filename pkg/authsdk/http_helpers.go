package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doJSON sends body (JSON encoded when non-nil) to path. It never attaches
// stored credentials; callers pass an explicit bearer token when one is needed.
func (c *SDKClient) doJSON(
	ctx context.Context,
	method, path string,
	body any,
	bearer string,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %w", ErrTransport, err)
	}

	return resp, nil
}

// DecodeEnvelope reads and closes resp.Body. A non-2xx status or a non-OK
// envelope code comes back as *APIError; otherwise the envelope data is
// decoded into target (skipped when target is nil).
func DecodeEnvelope(resp *http.Response, target any) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseErrorResponse(resp, bodyBytes)
	}

	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Code != 0 && env.Code != CodeOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Message,
		}
	}

	if target == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}

	return nil
}

// DrainAndClose discards whatever is left of a response body so the
// underlying connection can be reused.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
