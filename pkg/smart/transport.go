package smart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"smart/pkg/oauth"
)

// formParamsTransport adds parameters to form-encoded POST bodies. oauth2
// builds refresh requests itself, so extra refresh parameters are added on
// the way out.
type formParamsTransport struct {
	base   http.RoundTripper
	params map[string]string
}

func withFormParameters(client *http.Client, params map[string]string) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &formParamsTransport{base: base, params: params}
	return &wrapped
}

// RoundTrip implements http.RoundTripper. Parameters already present in the
// body are left alone.
func (t *formParamsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil ||
		!strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return t.base.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request body: %w", err)
	}
	for k, v := range t.params {
		if !form.Has(k) {
			form.Set(k, v)
		}
	}

	encoded := form.Encode()
	out := req.Clone(req.Context())
	out.Body = io.NopCloser(strings.NewReader(encoded))
	out.ContentLength = int64(len(encoded))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(encoded)), nil
	}
	return t.base.RoundTrip(out)
}

// bearerTransport signs requests with the agent's current access token.
// Requests go out unauthenticated while the agent holds no usable state,
// leaving the server to answer with a 401 challenge.
type bearerTransport struct {
	base  http.RoundTripper
	agent *Agent
}

// RoundTrip implements http.RoundTripper.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.agent.PerformAction(req.Context(), nil, func(_ context.Context, accessToken, _ string) error {
		signed := req.Clone(req.Context())
		oauth.AddAuthorization(signed, accessToken)
		var rerr error
		resp, rerr = t.base.RoundTrip(signed)
		return rerr
	})

	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrNoActiveState), errors.Is(err, ErrNotAuthorized):
		return t.base.RoundTrip(req)
	default:
		return nil, err
	}
}
