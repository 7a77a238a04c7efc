// Package smart implements a SMART App Launch client for FHIR servers.
//
// An Agent owns the authorization lifecycle against one authorization
// server: it discovers the server's configuration, starts authorization
// attempts, completes them when the redirect comes back, and hands fresh
// access tokens to callers through PerformAction.
//
// A Server represents the FHIR resource server. It owns exactly one Agent,
// supplies its base URL as the SMART "aud" parameter, and offers an
// http.Client that signs outgoing requests with the current bearer token.
//
// Typical use:
//
//	server, err := smart.NewServer(ctx, "https://fhir.example.com/r4", "https://auth.example.com",
//		smart.WithTokenStore(store))
//	if err != nil {
//		return err
//	}
//	session, err := server.RequestAuthorization(ctx, params, smart.BrowserPresenter{})
//	if err != nil {
//		return err
//	}
//	// the redirect arrives through server.HandleRedirect
//	state, err := session.Wait(ctx)
//
// OAuth 2.0 mechanics (code exchange, refresh, PKCE) are delegated to
// golang.org/x/oauth2 and ID token verification to go-oidc.
package smart
