package smart

import (
	"time"

	"golang.org/x/oauth2"
)

// AgentStatus is the lifecycle position of an Agent.
type AgentStatus int

const (
	// StatusUnconfigured means no configuration has been discovered or supplied.
	StatusUnconfigured AgentStatus = iota

	// StatusConfigured means a configuration is present and no authorization
	// is in progress or complete.
	StatusConfigured

	// StatusAuthorizing means an authorization session is pending.
	StatusAuthorizing

	// StatusAuthorized means a usable authorization state is held.
	StatusAuthorized
)

// String returns the string representation of the status.
func (s AgentStatus) String() string {
	switch s {
	case StatusUnconfigured:
		return "unconfigured"
	case StatusConfigured:
		return "configured"
	case StatusAuthorizing:
		return "authorizing"
	case StatusAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// AuthState is the outcome of a completed authorization: the token
// response including any SMART launch context. It is immutable; refreshes
// produce a new AuthState.
type AuthState struct {
	token *oauth2.Token
}

func newAuthState(token *oauth2.Token) *AuthState {
	return &AuthState{token: token}
}

// Token returns the underlying oauth2 token.
func (s *AuthState) Token() *oauth2.Token {
	return s.token
}

// AccessToken returns the access token.
func (s *AuthState) AccessToken() string {
	return s.token.AccessToken
}

// RefreshToken returns the refresh token, or "" when none was issued.
func (s *AuthState) RefreshToken() string {
	return s.token.RefreshToken
}

// TokenType returns the token type, typically "Bearer".
func (s *AuthState) TokenType() string {
	return s.token.Type()
}

// Expiry returns when the access token expires. The zero time means the
// server did not say.
func (s *AuthState) Expiry() time.Time {
	return s.token.Expiry
}

// IDToken returns the raw OpenID Connect ID token, if one was issued.
func (s *AuthState) IDToken() string {
	return s.extraString("id_token")
}

// Scope returns the scopes actually granted.
func (s *AuthState) Scope() string {
	return s.extraString("scope")
}

// Patient returns the patient ID from the launch context.
func (s *AuthState) Patient() string {
	return s.extraString("patient")
}

// Encounter returns the encounter ID from the launch context.
func (s *AuthState) Encounter() string {
	return s.extraString("encounter")
}

// SMARTStyleURL returns the styling hints URL from the launch context.
func (s *AuthState) SMARTStyleURL() string {
	return s.extraString("smart_style_url")
}

// NeedPatientBanner reports whether the app must display a patient banner.
func (s *AuthState) NeedPatientBanner() bool {
	switch v := s.token.Extra("need_patient_banner").(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// IsAuthorized reports whether the state holds an access token that is
// either still valid or can be refreshed.
func (s *AuthState) IsAuthorized() bool {
	if s == nil || s.token == nil || s.token.AccessToken == "" {
		return false
	}
	return s.token.Valid() || s.token.RefreshToken != ""
}

func (s *AuthState) extraString(key string) string {
	if s == nil || s.token == nil {
		return ""
	}
	v, _ := s.token.Extra(key).(string)
	return v
}
