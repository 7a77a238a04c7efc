package smart

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"smart/pkg/oauth"
)

const (
	testClientID    = "test-app"
	testRedirectURL = "http://localhost:3000/callback"
	testCode        = "good-code"
	testKeyID       = "test-key"
)

// fakeServer is an authorization server and FHIR server in one.
type fakeServer struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	// oidc serves OpenID Connect discovery and signs ID tokens.
	oidc bool

	calls int32

	mu            sync.Mutex
	tokenRequests []url.Values
	nonce         string
	refreshFails  bool
	expiresIn     int
	validTokens   map[string]bool

	// smartKeySet advertises jwks_uri in the SMART document and signs ID
	// tokens without OpenID Connect discovery.
	smartKeySet bool

	exchangeEntered chan struct{}
	exchangeGate    chan struct{}
}

func newFakeServer(t *testing.T, oidc bool) *fakeServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeServer{
		t:           t,
		key:         key,
		oidc:        oidc,
		expiresIn:   3600,
		validTokens: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", f.handleOIDCDiscovery)
	mux.HandleFunc("/.well-known/smart-configuration", f.handleSMARTDiscovery)
	mux.HandleFunc("/jwks", f.handleJWKS)
	mux.HandleFunc("/token", f.handleToken)
	mux.HandleFunc("/fhir/metadata", f.handleMetadata)
	mux.HandleFunc("/fhir/Patient/", f.handlePatient)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeServer) URL() string {
	return f.server.URL
}

func (f *fakeServer) FHIRURL() string {
	return f.server.URL + "/fhir"
}

func (f *fakeServer) Calls() int32 {
	return atomic.LoadInt32(&f.calls)
}

func (f *fakeServer) configuration() *oauth.Configuration {
	return &oauth.Configuration{
		Issuer:                f.server.URL,
		AuthorizationEndpoint: f.server.URL + "/authorize",
		TokenEndpoint:         f.server.URL + "/token",
	}
}

func (f *fakeServer) TokenRequests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenRequests...)
}

func (f *fakeServer) SetNonce(nonce string) {
	f.mu.Lock()
	f.nonce = nonce
	f.mu.Unlock()
}

func (f *fakeServer) SetRefreshFails(fails bool) {
	f.mu.Lock()
	f.refreshFails = fails
	f.mu.Unlock()
}

func (f *fakeServer) AllowToken(token string) {
	f.mu.Lock()
	f.validTokens[token] = true
	f.mu.Unlock()
}

func (f *fakeServer) SetSMARTKeySet(enabled bool) {
	f.mu.Lock()
	f.smartKeySet = enabled
	f.mu.Unlock()
}

// HoldExchange blocks authorization code requests until release is called.
// entered receives once per held request.
func (f *fakeServer) HoldExchange() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeEntered = make(chan struct{}, 16)
	f.exchangeGate = make(chan struct{})
	var once sync.Once
	gate := f.exchangeGate
	release = func() { once.Do(func() { close(gate) }) }
	f.t.Cleanup(release)
	return f.exchangeEntered, release
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeServer) handleOIDCDiscovery(w http.ResponseWriter, r *http.Request) {
	if !f.oidc {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                f.server.URL,
		"authorization_endpoint":                f.server.URL + "/authorize",
		"token_endpoint":                        f.server.URL + "/token",
		"jwks_uri":                              f.server.URL + "/jwks",
		"response_types_supported":              []string{"code"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256"},
	})
}

func (f *fakeServer) handleSMARTDiscovery(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"authorization_endpoint":           f.server.URL + "/authorize",
		"token_endpoint":                   f.server.URL + "/token",
		"capabilities":                     []string{"launch-standalone", "context-standalone-patient"},
		"code_challenge_methods_supported": []string{"S256"},
	}
	f.mu.Lock()
	if f.smartKeySet {
		doc["jwks_uri"] = f.server.URL + "/jwks"
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (f *fakeServer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &f.key.PublicKey,
		KeyID:     testKeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}})
}

func (f *fakeServer) signIDToken(nonce string) string {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: f.key, KeyID: testKeyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(f.t, err)

	now := time.Now()
	payload, err := json.Marshal(map[string]any{
		"iss":   f.server.URL,
		"sub":   "user-1",
		"aud":   testClientID,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"nonce": nonce,
	})
	require.NoError(f.t, err)

	jws, err := signer.Sign(payload)
	require.NoError(f.t, err)
	raw, err := jws.CompactSerialize()
	require.NoError(f.t, err)
	return raw
}

func (f *fakeServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.tokenRequests = append(f.tokenRequests, r.PostForm)
	nonce, refreshFails, expiresIn := f.nonce, f.refreshFails, f.expiresIn
	signIDToken := f.oidc || f.smartKeySet
	entered, gate := f.exchangeEntered, f.exchangeGate
	f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if gate != nil {
			entered <- struct{}{}
			<-gate
		}
		if r.PostForm.Get("code") != testCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		resp := map[string]any{
			"access_token":        "access-1",
			"token_type":          "Bearer",
			"expires_in":          expiresIn,
			"refresh_token":       "refresh-1",
			"scope":               "launch/patient patient/*.read",
			"patient":             "123",
			"need_patient_banner": true,
		}
		if signIDToken {
			resp["id_token"] = f.signIDToken(nonce)
		}
		f.AllowToken("access-1")
		writeJSON(w, http.StatusOK, resp)

	case "refresh_token":
		if refreshFails || r.PostForm.Get("refresh_token") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.AllowToken("access-2")
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-2",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-2",
		})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *fakeServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"kind":         "instance",
		"name":         "Test FHIR",
		"rest": []any{map[string]any{
			"mode": "server",
			"security": map[string]any{
				"extension": []any{map[string]any{
					"url": OAuthURIsExtension,
					"extension": []any{
						map[string]any{"url": "authorize", "valueUri": f.server.URL + "/authorize"},
						map[string]any{"url": "token", "valueUri": f.server.URL + "/token"},
					},
				}},
			},
		}},
	})
}

func (f *fakeServer) handlePatient(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	valid := f.validTokens[token]
	f.mu.Unlock()
	if !valid {
		w.Header().Set("WWW-Authenticate", `Bearer realm="fhir", error="invalid_token"`)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"resourceType": "OperationOutcome"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/fhir/Patient/")
	if id != "123" {
		writeJSON(w, http.StatusNotFound, map[string]any{"resourceType": "OperationOutcome"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resourceType": "Patient",
		"id":           "123",
		"name":         []any{map[string]any{"family": "Doe", "given": []string{"Jane"}}},
	})
}

func testParams() oauth.AuthorizationParameters {
	return oauth.AuthorizationParameters{
		ClientID:     testClientID,
		Scopes:       []string{"launch/patient", "patient/*.read"},
		RedirectURL:  testRedirectURL,
		ResponseType: oauth.ResponseTypeCode,
	}
}

// capturePresenter records the URLs it is asked to present.
type capturePresenter struct {
	mu   sync.Mutex
	urls []string
}

func (c *capturePresenter) Presenter() Presenter {
	return PresenterFunc(func(_ context.Context, authURL string) error {
		c.mu.Lock()
		c.urls = append(c.urls, authURL)
		c.mu.Unlock()
		return nil
	})
}

func (c *capturePresenter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}

// redirectFor builds the redirect the authorization server would send for session.
func redirectFor(t *testing.T, session *Session, extra url.Values) *url.URL {
	t.Helper()
	authURL, err := url.Parse(session.AuthURL())
	require.NoError(t, err)

	q := url.Values{"state": {authURL.Query().Get("state")}}
	for k, v := range extra {
		q[k] = v
	}
	u, err := url.Parse(testRedirectURL + "?" + q.Encode())
	require.NoError(t, err)
	return u
}

func authQuery(t *testing.T, session *Session) url.Values {
	t.Helper()
	authURL, err := url.Parse(session.AuthURL())
	require.NoError(t, err)
	return authURL.Query()
}

func stateWith(access, refresh string, expiry time.Time) *AuthState {
	return newAuthState(&oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       expiry,
	})
}
