package oauth

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AuthorizationParameters carries everything needed to build an
// authorization request. Optional fields are left empty when unset.
type AuthorizationParameters struct {
	ClientID     string
	ClientSecret string

	// Scopes are requested in order and serialized space-separated.
	Scopes []string

	RedirectURL  string
	ResponseType string

	State string
	Nonce string

	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string

	// AdditionalParameters are appended to the authorization URL verbatim,
	// e.g. the SMART "aud" and "launch" parameters.
	AdditionalParameters map[string]string
}

// reservedParameters are set from typed fields and cannot be given as
// additional parameters.
var reservedParameters = []string{
	"client_id",
	"redirect_uri",
	"response_type",
	"scope",
	"state",
	"nonce",
	"code_challenge",
	"code_challenge_method",
}

// IsReservedParameter reports whether name is an authorization URL parameter
// that AuthorizationParameters sets from a typed field.
func IsReservedParameter(name string) bool {
	return slices.Contains(reservedParameters, strings.ToLower(name))
}

// Validate checks the required fields and rejects additional parameters
// that would replace a typed field.
func (p AuthorizationParameters) Validate() error {
	var reserved []string
	for k := range p.AdditionalParameters {
		if IsReservedParameter(k) {
			reserved = append(reserved, k)
		}
	}
	if len(reserved) > 0 {
		slices.Sort(reserved)
		return fmt.Errorf("additional parameters %s are set from typed fields", strings.Join(reserved, ", "))
	}

	var missing []string
	if strings.TrimSpace(p.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(p.ResponseType) == "" {
		missing = append(missing, "response type")
	}
	if len(missing) > 0 {
		return errors.New("authorization parameters missing " + strings.Join(missing, " and "))
	}
	return nil
}

// Scope returns the scopes joined with single spaces.
func (p AuthorizationParameters) Scope() string {
	return strings.Join(p.Scopes, " ")
}

// Equal reports whether p and other have identical fields. Scope order is
// significant. A nil and an empty scope list or parameter map are equal.
func (p AuthorizationParameters) Equal(other AuthorizationParameters) bool {
	return p.ClientID == other.ClientID &&
		p.ClientSecret == other.ClientSecret &&
		slices.Equal(p.Scopes, other.Scopes) &&
		p.RedirectURL == other.RedirectURL &&
		p.ResponseType == other.ResponseType &&
		p.State == other.State &&
		p.Nonce == other.Nonce &&
		p.CodeVerifier == other.CodeVerifier &&
		p.CodeChallenge == other.CodeChallenge &&
		p.CodeChallengeMethod == other.CodeChallengeMethod &&
		maps.Equal(p.AdditionalParameters, other.AdditionalParameters)
}

// WithAdditionalParameter returns a copy of p with key set, leaving p's map untouched.
func (p AuthorizationParameters) WithAdditionalParameter(key, value string) AuthorizationParameters {
	params := make(map[string]string, len(p.AdditionalParameters)+1)
	maps.Copy(params, p.AdditionalParameters)
	params[key] = value
	p.AdditionalParameters = params
	return p
}
