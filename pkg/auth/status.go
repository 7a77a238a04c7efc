package auth

import (
	"time"

	"smart/pkg/tokenstore"
)

// Status values of a ServerStatus.
const (
	StatusAuthorized    = "authorized"
	StatusExpired       = "expired"
	StatusNotAuthorized = "not_authorized"
)

// StatusResponse is the authorization state of every listed server.
type StatusResponse struct {
	Servers []ServerStatus `json:"servers"`
}

// ServerStatus is the stored authorization state for one FHIR server.
type ServerStatus struct {
	// Name is the configured server name
	Name string `json:"name"`

	// Aud is the normalized base URL the token was issued for
	Aud string `json:"aud"`

	// Status is one of: "authorized", "expired", "not_authorized"
	Status string `json:"status"`

	Issuer          string     `json:"issuer,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`

	// Launch context returned with the token
	Scope     string `json:"scope,omitempty"`
	Patient   string `json:"patient,omitempty"`
	Encounter string `json:"encounter,omitempty"`
}

// NewServerStatus describes token, which may be nil.
func NewServerStatus(name, aud string, token *tokenstore.StoredToken) ServerStatus {
	status := ServerStatus{
		Name:   name,
		Aud:    aud,
		Status: StatusNotAuthorized,
	}
	if token == nil {
		return status
	}

	status.Status = StatusAuthorized
	if !token.ToOAuth2Token().Valid() {
		status.Status = StatusExpired
	}
	status.Issuer = token.IssuerURL
	status.HasRefreshToken = token.RefreshToken != ""
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		status.ExpiresAt = &expiry
	}
	status.Scope = extraString(token, "scope")
	status.Patient = extraString(token, "patient")
	status.Encounter = extraString(token, "encounter")
	return status
}

func extraString(token *tokenstore.StoredToken, key string) string {
	s, _ := token.Extra[key].(string)
	return s
}
