package tokenstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned by Load when no usable token is stored for a key.
var ErrNotFound = errors.New("token not found")

// ContextKeys are the token response fields carried across a save/load
// round trip in addition to the core oauth2 fields.
var ContextKeys = []string{
	"id_token",
	"scope",
	"patient",
	"encounter",
	"need_patient_banner",
	"smart_style_url",
	"intent",
	"tenant",
}

// StoredToken is the persisted form of an authorization state.
type StoredToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry,omitempty"`

	// Extra holds the SMART launch context and ID token from the token response.
	Extra map[string]any `json:"extra,omitempty"`

	// ServerURL is the resource server this token authorizes against.
	ServerURL string `json:"server_url"`

	// IssuerURL is the authorization server that issued this token.
	IssuerURL string `json:"issuer_url"`

	// ClientID is the client the token was issued to, needed for refresh.
	ClientID string `json:"client_id,omitempty"`

	// CreatedAt is when the token was stored.
	CreatedAt time.Time `json:"created_at"`
}

// FromOAuth2Token captures token for persistence.
func FromOAuth2Token(serverURL, issuerURL string, token *oauth2.Token) *StoredToken {
	stored := &StoredToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		ServerURL:    serverURL,
		IssuerURL:    issuerURL,
		CreatedAt:    time.Now(),
	}

	for _, key := range ContextKeys {
		if v := token.Extra(key); v != nil {
			if stored.Extra == nil {
				stored.Extra = make(map[string]any)
			}
			stored.Extra[key] = v
		}
	}

	return stored
}

// ToOAuth2Token converts a StoredToken back to an oauth2.Token.
func (t *StoredToken) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
	if len(t.Extra) > 0 {
		token = token.WithExtra(t.Extra)
	}
	return token
}

// expiryBuffer accounts for clock skew and network latency.
const expiryBuffer = 60 * time.Second

// Usable reports whether the token can still authorize requests, either
// directly or after a refresh.
func (t *StoredToken) Usable() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.RefreshToken != "" || t.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(expiryBuffer).Before(t.Expiry)
}

// Key derives a filesystem and keyring safe identifier for a server URL.
func Key(serverURL string) string {
	hash := sha256.Sum256([]byte(serverURL))
	return hex.EncodeToString(hash[:16])
}
