package oauth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// AuthChallenge represents parsed information from a WWW-Authenticate header.
type AuthChallenge struct {
	// Scheme is the authentication scheme (typically "Bearer").
	Scheme string

	// Realm is the protection realm.
	Realm string

	// Scope is the space-separated list of scopes the resource requires.
	Scope string

	// Error is the error code from the header, e.g. "invalid_token" or
	// "insufficient_scope".
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsInsufficientScope reports whether the resource server rejected the
// token for lacking scope rather than for being invalid.
func (c *AuthChallenge) IsInsufficientScope() bool {
	return c != nil && c.Error == "insufficient_scope"
}

var authParamRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseWWWAuthenticate parses a WWW-Authenticate header value.
//
// Example headers:
//
//	Bearer realm="fhir"
//	Bearer error="invalid_token", error_description="The access token expired"
//	Bearer error="insufficient_scope", scope="patient/Observation.read"
func ParseWWWAuthenticate(header string) (*AuthChallenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty WWW-Authenticate header")
	}

	parts := strings.SplitN(header, " ", 2)
	challenge := &AuthChallenge{
		Scheme: parts[0],
	}

	if len(parts) > 1 {
		for _, match := range authParamRegex.FindAllStringSubmatch(parts[1], -1) {
			value := match[2]
			switch strings.ToLower(match[1]) {
			case "realm":
				challenge.Realm = value
			case "scope":
				challenge.Scope = value
			case "error":
				challenge.Error = value
			case "error_description":
				challenge.ErrorDescription = value
			}
		}
	}

	return challenge, nil
}

// ParseWWWAuthenticateFromResponse extracts the challenge from a 401 or 403
// response. Returns nil if there is no parseable header.
func ParseWWWAuthenticateFromResponse(resp *http.Response) *AuthChallenge {
	if resp == nil || (resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden) {
		return nil
	}

	header := resp.Header.Get("WWW-Authenticate")
	if header == "" {
		return nil
	}

	challenge, err := ParseWWWAuthenticate(header)
	if err != nil {
		return nil
	}

	return challenge
}
