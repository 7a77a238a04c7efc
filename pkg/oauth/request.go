package oauth

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/oauth2"
)

// AuthorizationRequest is an authorization request ready to be handed to a
// user agent. It is the oauth2 rendition of AuthorizationParameters with
// state (and, where applicable, PKCE and nonce) resolved.
type AuthorizationRequest struct {
	// Config drives the authorization URL and the later code exchange.
	Config *oauth2.Config

	ResponseType        string
	State               string
	Nonce               string
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string

	AdditionalParameters map[string]string
}

// BuildRequest maps the parameters onto the configuration's endpoints.
//
// A missing state is generated. For the code response type, a PKCE pair is
// generated when neither verifier nor challenge is given and the server
// supports S256; a verifier given without a challenge gets its challenge
// derived. A nonce is generated when the "openid" scope is requested.
func (p AuthorizationParameters) BuildRequest(cfg *Configuration) (*AuthorizationRequest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	req := &AuthorizationRequest{
		Config: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			Endpoint:     cfg.Endpoint(),
			RedirectURL:  p.RedirectURL,
			Scopes:       slices.Clone(p.Scopes),
		},
		ResponseType:         p.ResponseType,
		State:                p.State,
		Nonce:                p.Nonce,
		CodeVerifier:         p.CodeVerifier,
		CodeChallenge:        p.CodeChallenge,
		CodeChallengeMethod:  p.CodeChallengeMethod,
		AdditionalParameters: p.AdditionalParameters,
	}

	if req.State == "" {
		state, err := GenerateState()
		if err != nil {
			return nil, err
		}
		req.State = state
	}

	if req.Nonce == "" && slices.Contains(p.Scopes, "openid") {
		nonce, err := GenerateNonce()
		if err != nil {
			return nil, err
		}
		req.Nonce = nonce
	}

	if req.ResponseType == ResponseTypeCode {
		switch {
		case req.CodeVerifier == "" && req.CodeChallenge == "" && cfg.SupportsPKCE():
			pkce := GeneratePKCE()
			req.CodeVerifier = pkce.CodeVerifier
			req.CodeChallenge = pkce.CodeChallenge
			req.CodeChallengeMethod = pkce.CodeChallengeMethod
		case req.CodeVerifier != "" && req.CodeChallenge == "":
			if strings.EqualFold(req.CodeChallengeMethod, "plain") {
				req.CodeChallenge = req.CodeVerifier
			} else {
				req.CodeChallenge = oauth2.S256ChallengeFromVerifier(req.CodeVerifier)
				req.CodeChallengeMethod = PKCEMethodS256
			}
		}
	}

	return req, nil
}

// Scope returns the space-separated scope string sent to the server.
func (r *AuthorizationRequest) Scope() string {
	return strings.Join(r.Config.Scopes, " ")
}

// authCodeOptions returns the authorization URL parameters beyond what
// oauth2.Config itself sets. Validate keeps additional parameters from
// naming a typed field.
func (r *AuthorizationRequest) authCodeOptions() []oauth2.AuthCodeOption {
	var opts []oauth2.AuthCodeOption

	keys := make([]string, 0, len(r.AdditionalParameters))
	for k := range r.AdditionalParameters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, r.AdditionalParameters[k]))
	}

	if r.ResponseType != "" {
		opts = append(opts, oauth2.SetAuthURLParam("response_type", r.ResponseType))
	}
	if r.Nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", r.Nonce))
	}
	if r.CodeChallenge != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_challenge", r.CodeChallenge))
		if r.CodeChallengeMethod != "" {
			opts = append(opts, oauth2.SetAuthURLParam("code_challenge_method", r.CodeChallengeMethod))
		}
	}

	return opts
}

// URL returns the authorization URL to open in the user agent.
func (r *AuthorizationRequest) URL() string {
	return r.Config.AuthCodeURL(r.State, r.authCodeOptions()...)
}

// ExchangeOptions returns the options for exchanging the authorization code.
func (r *AuthorizationRequest) ExchangeOptions() []oauth2.AuthCodeOption {
	if r.CodeVerifier == "" {
		return nil
	}
	return []oauth2.AuthCodeOption{oauth2.VerifierOption(r.CodeVerifier)}
}

// MatchesRedirect reports whether redirect targets this request's redirect
// URL. Scheme and host compare case-insensitively, paths exactly. A request
// without a redirect URL accepts any redirect.
func (r *AuthorizationRequest) MatchesRedirect(redirect *url.URL) bool {
	if redirect == nil {
		return false
	}
	if r.Config.RedirectURL == "" {
		return true
	}
	expected, err := url.Parse(r.Config.RedirectURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(expected.Scheme, redirect.Scheme) &&
		strings.EqualFold(expected.Host, redirect.Host) &&
		strings.TrimSuffix(expected.Path, "/") == strings.TrimSuffix(redirect.Path, "/")
}
