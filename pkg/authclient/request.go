package authclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is a captured outbound call. It holds everything needed to send it
// again after a refresh: method, path relative to the API base URL, query,
// body bytes and headers. Authorization is never stored here; it is attached
// per attempt from the current session.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewRequest returns a Request with an empty header set.
func NewRequest(method, path string, body []byte) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Header: http.Header{},
		Body:   body,
	}
}

// build materialises one attempt. A fresh body reader is created each time so
// the request can be replayed.
func (r *Request) build(ctx context.Context, baseURL, accessToken string) (*http.Request, error) {
	target := strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(r.Path, "/")
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}

	for key, values := range r.Header {
		if http.CanonicalHeaderKey(key) == "Authorization" {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return req, nil
}

// path without query, used to recognise the authentication endpoints.
func (r *Request) endpoint() string {
	p := "/" + strings.TrimPrefix(r.Path, "/")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}
