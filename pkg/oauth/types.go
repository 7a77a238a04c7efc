package oauth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is the margin applied when deciding whether a token is
// about to expire. It accounts for clock skew and network latency.
const DefaultExpiryMargin = 30 * time.Second

const (
	// ResponseTypeCode is the authorization code response type.
	ResponseTypeCode = "code"

	// PKCEMethodS256 is the only PKCE method this package generates.
	PKCEMethodS256 = "S256"
)

// Well-known discovery paths, relative to the issuer.
const (
	WellKnownOIDCPath        = "/.well-known/openid-configuration"
	WellKnownSMARTPath       = "/.well-known/smart-configuration"
	WellKnownOAuthServerPath = "/.well-known/oauth-authorization-server"
)

// Configuration is an authorization server's discovery document. It is
// produced by Client.DiscoverConfiguration or assembled by hand when the
// endpoints are known in advance.
type Configuration struct {
	// Issuer is the authorization server's issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// UserinfoEndpoint is the URL of the userinfo endpoint (OIDC).
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// JwksURI is the URL of the JSON Web Key Set.
	JwksURI string `json:"jwks_uri,omitempty"`

	// RegistrationEndpoint is the URL for dynamic client registration.
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`

	// IntrospectionEndpoint is the URL of the token introspection endpoint.
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`

	// RevocationEndpoint is the URL of the token revocation endpoint.
	RevocationEndpoint string `json:"revocation_endpoint,omitempty"`

	// ManagementEndpoint is the SMART user-facing authorization management page.
	ManagementEndpoint string `json:"management_endpoint,omitempty"`

	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`

	// Capabilities lists SMART App Launch capabilities, e.g. "launch-standalone".
	Capabilities []string `json:"capabilities,omitempty"`

	// provider is set when the document came from OpenID Connect discovery and
	// is used to verify ID tokens.
	provider *oidc.Provider
}

// Validate checks that the configuration can drive an authorization code flow.
func (c *Configuration) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}
	var missing []string
	if c.AuthorizationEndpoint == "" {
		missing = append(missing, "authorization_endpoint")
	}
	if c.TokenEndpoint == "" {
		missing = append(missing, "token_endpoint")
	}
	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// SupportsPKCE returns true if the server supports S256 PKCE.
func (c *Configuration) SupportsPKCE() bool {
	if slices.Contains(c.CodeChallengeMethodsSupported, PKCEMethodS256) {
		return true
	}
	// If not specified, assume S256 is supported (OAuth 2.1 requirement)
	return len(c.CodeChallengeMethodsSupported) == 0
}

// HasCapability reports whether the server advertises the SMART capability.
func (c *Configuration) HasCapability(capability string) bool {
	return slices.Contains(c.Capabilities, capability)
}

// Endpoint returns the oauth2 endpoint pair for this configuration.
func (c *Configuration) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  c.AuthorizationEndpoint,
		TokenURL: c.TokenEndpoint,
	}
}

// IDTokenVerifier returns a verifier for ID tokens issued to clientID. It uses
// the OpenID Connect provider when discovery found one and otherwise the
// document's jwks_uri, fetched with the HTTP client carried by ctx (see
// oidc.ClientContext). It returns nil when the configuration has no key set.
func (c *Configuration) IDTokenVerifier(ctx context.Context, clientID string) *oidc.IDTokenVerifier {
	if c == nil {
		return nil
	}
	cfg := &oidc.Config{ClientID: clientID}
	if c.provider != nil {
		return c.provider.Verifier(cfg)
	}
	if c.JwksURI == "" || c.Issuer == "" {
		return nil
	}
	keys := oidc.NewRemoteKeySet(context.WithoutCancel(ctx), c.JwksURI)
	return oidc.NewVerifier(c.Issuer, keys, cfg)
}
