package smart

import (
	"errors"
	"fmt"
	"net/http"

	"smart/pkg/oauth"
	"smart/pkg/strings"
)

var (
	// ErrDiscoveryFailed is returned when the authorization server's
	// configuration could not be discovered.
	ErrDiscoveryFailed = errors.New("configuration discovery failed")

	// ErrNotConfigured is returned when an operation needs a configuration
	// and none has been discovered or supplied.
	ErrNotConfigured = errors.New("no authorization server configuration")

	// ErrNoActiveState is returned when no authorization has completed yet.
	ErrNoActiveState = errors.New("no authorization state")

	// ErrNotAuthorized is returned when the stored state cannot produce a
	// usable access token.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrSessionMissing is returned when a redirect arrives with no pending
	// authorization session to resume.
	ErrSessionMissing = errors.New("no pending authorization session")

	// ErrAuthorizationFailed is returned when an authorization attempt ends
	// without a token.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// ErrSessionCanceled is delivered to session waiters when the session is
	// replaced, reset or canceled.
	ErrSessionCanceled = errors.New("authorization session canceled")

	// ErrNoPatientContext is returned when the token response carried no
	// patient launch context.
	ErrNoPatientContext = errors.New("no patient in launch context")

	// ErrStateMismatch is returned when the redirect's state parameter does
	// not match the pending request.
	ErrStateMismatch = errors.New("state parameter mismatch")
)

// AuthorizationError is an error response delivered by the authorization
// server to the redirect URL.
type AuthorizationError struct {
	Code        string
	Description string
	URI         string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	msg := "authorization server returned " + e.Code
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// Unwrap makes AuthorizationError match ErrAuthorizationFailed.
func (e *AuthorizationError) Unwrap() error {
	return ErrAuthorizationFailed
}

// maxErrorSnippet is how much of a response body ResponseError.Error shows.
const maxErrorSnippet = 200

// ResponseError is a non-2xx response from the FHIR server.
type ResponseError struct {
	StatusCode int
	URL        string

	// Challenge is the parsed WWW-Authenticate header of 401 and 403 responses.
	Challenge *oauth.AuthChallenge

	// Body holds the start of the response body, typically an OperationOutcome.
	Body []byte
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Challenge != nil && e.Challenge.Error != "" {
		msg += " (" + e.Challenge.Error + ")"
	}
	if len(e.Body) > 0 && e.StatusCode != http.StatusUnauthorized {
		msg += ": " + strings.Truncate(string(e.Body), maxErrorSnippet)
	}
	return msg
}

// Unwrap makes a 401 response match ErrNotAuthorized.
func (e *ResponseError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthorized
	}
	return nil
}
