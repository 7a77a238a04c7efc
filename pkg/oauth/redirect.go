package oauth

import (
	"net/url"
)

// RedirectResult is the outcome the authorization server delivered to the
// redirect URL.
type RedirectResult struct {
	// Code is the authorization code from the OAuth provider.
	Code string

	// State is the state parameter to verify against the original request.
	State string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string

	// ErrorURI points to a page describing the error.
	ErrorURI string
}

// ParseRedirect extracts the authorization response from a redirect URL.
// Parameters are read from the query, falling back to the fragment for
// servers that answer in fragment mode.
func ParseRedirect(redirect *url.URL) *RedirectResult {
	values := redirect.Query()
	if values.Get("code") == "" && values.Get("error") == "" && redirect.Fragment != "" {
		if fragment, err := url.ParseQuery(redirect.Fragment); err == nil {
			values = fragment
		}
	}

	return &RedirectResult{
		Code:             values.Get("code"),
		State:            values.Get("state"),
		Error:            values.Get("error"),
		ErrorDescription: values.Get("error_description"),
		ErrorURI:         values.Get("error_uri"),
	}
}

// IsError returns true if the result represents an error.
func (r *RedirectResult) IsError() bool {
	return r.Error != ""
}
