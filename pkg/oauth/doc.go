// Package oauth provides the OAuth 2.0 / OpenID Connect protocol layer used by
// the SMART-on-FHIR SDK in pkg/smart.
//
// The package does not implement OAuth flows itself. Token exchange, refresh
// and PKCE challenge derivation are delegated to golang.org/x/oauth2, and
// OpenID Connect discovery and ID token verification to
// github.com/coreos/go-oidc/v3. What lives here is the plumbing around them.
//
// # Core Components
//
//   - Configuration: the authorization server's discovery document (OIDC,
//     SMART App Launch, or RFC 8414), passed through opaquely
//   - Client: cached, deduplicated configuration discovery
//   - AuthorizationParameters: the typed input of an authorization request
//   - AuthorizationRequest: the oauth2 rendition of those parameters
//   - RedirectResult: the parsed redirect delivered back by the user agent
//   - AddAuthorization: bearer token attachment for outgoing requests
//   - ParseWWWAuthenticate: Bearer challenge parsing for 401 responses
//
// # Usage
//
//	client := oauth.NewClient(oauth.WithHTTPClient(httpClient))
//	cfg, err := client.DiscoverConfiguration(ctx, issuer)
//
//	params := oauth.AuthorizationParameters{
//	    ClientID:     "my-app",
//	    Scopes:       []string{"launch/patient", "patient/*.read"},
//	    RedirectURL:  "http://localhost:3000/callback",
//	    ResponseType: oauth.ResponseTypeCode,
//	}
//	req, err := params.BuildRequest(cfg)
//	openBrowser(req.URL())
package oauth
