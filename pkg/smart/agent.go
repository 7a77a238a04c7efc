package smart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"smart/pkg/logging"
	"smart/pkg/oauth"
	"smart/pkg/tokenstore"
)

// ActionFunc receives a fresh access token, and the ID token if one was
// issued, from PerformAction.
type ActionFunc func(ctx context.Context, accessToken, idToken string) error

// Agent manages authorization against one authorization server. It holds
// at most one configuration, one pending Session and one AuthState.
//
// All methods are safe for concurrent use. Network calls never run while
// the agent's lock is held.
type Agent struct {
	issuer     string
	audience   string
	httpClient *http.Client
	logger     *slog.Logger
	discovery  *oauth.Client
	store      tokenstore.Store

	// discovered is closed once the construction-time discovery finished.
	discovered chan struct{}

	// refreshMu serializes token refreshes.
	refreshMu sync.Mutex

	mu           sync.Mutex
	config       *oauth.Configuration
	discoveryErr error
	session      *Session
	state        *AuthState
	clientID     string
	clientSecret string
}

func newAgent(issuer string, o *options) *Agent {
	a := &Agent{
		issuer:       issuer,
		audience:     o.audience,
		httpClient:   o.httpClient,
		logger:       o.logger,
		discovery:    o.discovery,
		store:        o.store,
		discovered:   make(chan struct{}),
		clientID:     o.clientID,
		clientSecret: o.clientSecret,
	}
	if a.audience == "" {
		a.audience = issuer
	}
	a.restore()
	return a
}

// NewAgent creates an agent for issuer and starts discovering its
// configuration in the background. Use WaitForConfiguration to observe the
// outcome, or DiscoverConfiguration to retry.
func NewAgent(ctx context.Context, issuer string, opts ...Option) *Agent {
	a := newAgent(issuer, buildOptions(opts))
	a.discoverInBackground(ctx)
	return a
}

func (a *Agent) discoverInBackground(ctx context.Context) {
	go func() {
		defer close(a.discovered)
		_ = a.DiscoverConfiguration(ctx)
	}()
}

// NewAgentWithConfiguration creates an agent from a known configuration
// without contacting the authorization server.
func NewAgentWithConfiguration(cfg *oauth.Configuration, opts ...Option) (*Agent, error) {
	return newConfiguredAgent(cfg, buildOptions(opts))
}

func newConfiguredAgent(cfg *oauth.Configuration, o *options) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a := newAgent(cfg.Issuer, o)
	a.config = cfg
	close(a.discovered)
	return a, nil
}

// restore loads persisted state for the agent's audience.
func (a *Agent) restore() {
	if a.store == nil || a.audience == "" {
		return
	}

	stored, err := a.store.Load(a.audience)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			a.logger.Warn("Failed to load stored token", "audience", a.audience, "error", err)
		}
		return
	}

	a.state = newAuthState(stored.ToOAuth2Token())
	if a.clientID == "" {
		a.clientID = stored.ClientID
	}
	a.logger.Debug("Restored authorization state",
		"audience", a.audience,
		"has_refresh_token", stored.RefreshToken != "")
}

// DiscoverConfiguration fetches the issuer's configuration and stores it.
// A failure leaves any existing configuration in place and returns an
// error wrapping ErrDiscoveryFailed. It does not retry.
func (a *Agent) DiscoverConfiguration(ctx context.Context) error {
	cfg, err := a.discovery.DiscoverConfiguration(ctx, a.issuer)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.discoveryErr = fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
		a.logger.Warn("Configuration discovery failed", "issuer", a.issuer, "error", err)
		return a.discoveryErr
	}

	a.config = cfg
	a.discoveryErr = nil
	a.logger.Debug("Discovered configuration",
		"issuer", a.issuer,
		"authorization_endpoint", cfg.AuthorizationEndpoint,
		"token_endpoint", cfg.TokenEndpoint)
	return nil
}

// WaitForConfiguration blocks until construction-time discovery finished
// and returns the configuration, or ErrNotConfigured wrapping the
// discovery error.
func (a *Agent) WaitForConfiguration(ctx context.Context) (*oauth.Configuration, error) {
	select {
	case <-a.discovered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.config == nil {
		return nil, a.notConfiguredLocked()
	}
	return a.config, nil
}

func (a *Agent) notConfiguredLocked() error {
	if a.discoveryErr != nil {
		return fmt.Errorf("%w: %w", ErrNotConfigured, a.discoveryErr)
	}
	return ErrNotConfigured
}

// RequestAuthorization starts an authorization attempt and hands its URL
// to presenter. A pending attempt is canceled first. The returned Session
// resolves when a matching redirect is passed to HandleRedirect.
//
// Without a configuration it returns ErrNotConfigured and changes nothing.
func (a *Agent) RequestAuthorization(ctx context.Context, params oauth.AuthorizationParameters, presenter Presenter) (*Session, error) {
	a.mu.Lock()
	cfg := a.config
	if cfg == nil {
		err := a.notConfiguredLocked()
		a.mu.Unlock()
		a.logger.Warn("Authorization requested before configuration is available", "issuer", a.issuer)
		return nil, err
	}
	a.mu.Unlock()

	if presenter == nil {
		return nil, errors.New("presenter is required")
	}

	req, err := params.BuildRequest(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization request: %w", err)
	}

	session := newSession(req, cfg)

	a.mu.Lock()
	previous := a.session
	a.session = session
	a.mu.Unlock()

	if previous != nil && previous.resolve(nil, ErrSessionCanceled) {
		a.logger.Debug("Canceled pending authorization session",
			"session_id", logging.TruncateSessionID(previous.ID()))
	}

	a.logger.Info("Starting authorization",
		"session_id", logging.TruncateSessionID(session.ID()),
		"issuer", a.issuer,
		"redirect_url", req.Config.RedirectURL,
		"scope", req.Scope())

	if err := presenter.present(ctx, session.AuthURL()); err != nil {
		err = fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
		a.abandon(session, err)
		return nil, err
	}

	return session, nil
}

// HandleRedirect resumes the pending session with redirect. It returns
// false, without side effects, when no session is pending or redirect does
// not target the session's redirect URL. The outcome of a handled redirect
// is delivered through the session.
func (a *Agent) HandleRedirect(ctx context.Context, redirect *url.URL) bool {
	_, err := a.CompleteAuthorization(ctx, redirect)
	if errors.Is(err, ErrSessionMissing) {
		a.logger.Debug("Ignoring redirect without a pending session")
		return false
	}
	if err != nil {
		a.logger.Warn("Authorization failed", "error", err)
	}
	return true
}

// CompleteAuthorization is HandleRedirect with the outcome returned. It
// returns ErrSessionMissing when the redirect is not for a pending session.
func (a *Agent) CompleteAuthorization(ctx context.Context, redirect *url.URL) (*AuthState, error) {
	a.mu.Lock()
	session := a.session
	if session == nil || session.claimed || session.resolved() || !session.request.MatchesRedirect(redirect) {
		a.mu.Unlock()
		return nil, ErrSessionMissing
	}
	session.claimed = true
	a.mu.Unlock()

	token, err := a.exchange(ctx, session, redirect)
	if err != nil {
		a.abandon(session, err)
		return nil, err
	}
	state := newAuthState(token)

	a.mu.Lock()
	current := a.session == session
	if current {
		a.session = nil
	}
	if !current || !session.resolve(state, nil) {
		a.mu.Unlock()
		return nil, ErrSessionCanceled
	}
	a.state = state
	a.clientID = session.request.Config.ClientID
	a.clientSecret = session.request.Config.ClientSecret
	clientID := a.clientID
	a.mu.Unlock()

	a.persist(state, clientID)
	logging.Audit(logging.AuditEvent{
		Action:    "authorization",
		Outcome:   "success",
		SessionID: logging.TruncateSessionID(session.ID()),
		Target:    a.audience,
	})
	return state, nil
}

// exchange validates the redirect and trades the code for a token.
func (a *Agent) exchange(ctx context.Context, session *Session, redirect *url.URL) (*oauth2.Token, error) {
	result := oauth.ParseRedirect(redirect)
	if result.IsError() {
		return nil, &AuthorizationError{
			Code:        result.Error,
			Description: result.ErrorDescription,
			URI:         result.ErrorURI,
		}
	}
	if result.State != session.request.State {
		return nil, fmt.Errorf("%w: %w", ErrAuthorizationFailed, ErrStateMismatch)
	}
	if result.Code == "" {
		return nil, fmt.Errorf("%w: redirect carries no authorization code", ErrAuthorizationFailed)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := session.request.Config.Exchange(ctx, result.Code, session.request.ExchangeOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %w", ErrAuthorizationFailed, err)
	}

	if err := a.verifyIDToken(ctx, session, token); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	return token, nil
}

// verifyIDToken checks signature, audience, expiry and nonce of an issued
// ID token. Configurations that advertise no key set, neither through OpenID
// Connect discovery nor a jwks_uri, pass their ID tokens through unverified.
func (a *Agent) verifyIDToken(ctx context.Context, session *Session, token *oauth2.Token) error {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return nil
	}

	ctx = oidc.ClientContext(ctx, a.httpClient)
	verifier := session.config.IDTokenVerifier(ctx, session.request.Config.ClientID)
	if verifier == nil {
		a.logger.Debug("Skipping ID token verification, configuration has no key set")
		return nil
	}

	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return fmt.Errorf("invalid ID token: %w", err)
	}
	if session.request.Nonce != "" && idToken.Nonce != session.request.Nonce {
		return errors.New("ID token nonce mismatch")
	}
	return nil
}

// abandon clears session if it is still pending and resolves it with err.
func (a *Agent) abandon(session *Session, err error) {
	a.mu.Lock()
	if a.session == session {
		a.session = nil
	}
	a.mu.Unlock()

	if session.resolve(nil, err) {
		logging.Audit(logging.AuditEvent{
			Action:    "authorization",
			Outcome:   "failure",
			SessionID: logging.TruncateSessionID(session.ID()),
			Target:    a.audience,
			Error:     err.Error(),
		})
	}
}

// PerformAction runs action with a fresh access token, refreshing it first
// when it has expired. additionalRefreshParameters are sent with a refresh
// request. Without a configuration, state, or usable token it returns
// ErrNotConfigured, ErrNoActiveState or ErrNotAuthorized respectively, in
// that order, and does nothing else.
//
// action runs on the caller's goroutine; its error is returned as is.
func (a *Agent) PerformAction(ctx context.Context, additionalRefreshParameters map[string]string, action ActionFunc) error {
	a.mu.Lock()
	cfg, state := a.config, a.state
	var guard error
	switch {
	case cfg == nil:
		guard = a.notConfiguredLocked()
	case state == nil:
		guard = ErrNoActiveState
	case !state.IsAuthorized():
		guard = ErrNotAuthorized
	}
	a.mu.Unlock()

	if guard != nil {
		a.logger.Warn("Cannot perform action", "audience", a.audience, "reason", guard)
		return guard
	}

	fresh, err := a.freshState(ctx, cfg, state, additionalRefreshParameters)
	if err != nil {
		return err
	}

	return action(ctx, fresh.AccessToken(), fresh.IDToken())
}

// freshState returns state if its access token is still valid and
// otherwise refreshes it.
func (a *Agent) freshState(ctx context.Context, cfg *oauth.Configuration, state *AuthState, params map[string]string) (*AuthState, error) {
	if state.Token().Valid() {
		return state, nil
	}

	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	a.mu.Lock()
	current := a.state
	clientID, clientSecret := a.clientID, a.clientSecret
	a.mu.Unlock()
	if current == nil {
		return nil, ErrNoActiveState
	}
	if current.Token().Valid() {
		return current, nil
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     cfg.Endpoint(),
	}
	httpClient := a.httpClient
	if len(params) > 0 {
		httpClient = withFormParameters(httpClient, params)
	}

	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	token, err := conf.TokenSource(refreshCtx, current.Token()).Token()
	if err != nil {
		a.logger.Warn("Token refresh failed", "audience", a.audience, "error", err)
		return nil, fmt.Errorf("%w: token refresh failed: %w", ErrNotAuthorized, err)
	}

	refreshed := newAuthState(carryContext(current.Token(), token))

	a.mu.Lock()
	if a.state == current {
		a.state = refreshed
	}
	a.mu.Unlock()

	a.logger.Debug("Refreshed access token",
		"audience", a.audience,
		"refresh_token_rotated", token.RefreshToken != current.RefreshToken())
	a.persist(refreshed, clientID)
	return refreshed, nil
}

// carryContext copies launch context and the ID token from prev onto next
// where the refresh response omitted them.
func carryContext(prev, next *oauth2.Token) *oauth2.Token {
	extra := make(map[string]any)
	for _, key := range tokenstore.ContextKeys {
		if v := next.Extra(key); v != nil {
			extra[key] = v
		} else if v := prev.Extra(key); v != nil {
			extra[key] = v
		}
	}
	if len(extra) == 0 {
		return next
	}
	return next.WithExtra(extra)
}

func (a *Agent) persist(state *AuthState, clientID string) {
	if a.store == nil || a.audience == "" {
		return
	}
	stored := tokenstore.FromOAuth2Token(a.audience, a.issuer, state.Token())
	stored.ClientID = clientID
	if err := a.store.Save(stored); err != nil {
		a.logger.Warn("Failed to persist authorization state", "audience", a.audience, "error", err)
	}
}

// Reset cancels any pending session, clears the authorization state and
// deletes the persisted token. The configuration is kept, so a configured
// agent reports StatusConfigured afterwards and can authorize again.
func (a *Agent) Reset() error {
	a.mu.Lock()
	session := a.session
	a.session = nil
	a.state = nil
	a.mu.Unlock()

	if session != nil && session.resolve(nil, ErrSessionCanceled) {
		a.logger.Debug("Canceled pending authorization session",
			"session_id", logging.TruncateSessionID(session.ID()))
	}
	a.logger.Info("Authorization state reset", "audience", a.audience)

	if a.store != nil {
		if err := a.store.Delete(a.audience); err != nil {
			return fmt.Errorf("failed to delete stored token: %w", err)
		}
	}
	return nil
}

// Issuer returns the authorization server's issuer URL.
func (a *Agent) Issuer() string {
	return a.issuer
}

// Audience returns the key the agent's state is persisted under.
func (a *Agent) Audience() string {
	return a.audience
}

// Configuration returns the current configuration, or nil.
func (a *Agent) Configuration() *oauth.Configuration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config
}

// HasConfiguration reports whether a configuration is present.
func (a *Agent) HasConfiguration() bool {
	return a.Configuration() != nil
}

// DiscoveryError returns the error of the last failed discovery, or nil.
func (a *Agent) DiscoveryError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discoveryErr
}

// Session returns the pending authorization session, or nil.
func (a *Agent) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || a.session.resolved() {
		return nil
	}
	return a.session
}

// State returns the current authorization state, or nil.
func (a *Agent) State() *AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// AgentStatus reports where the agent is in its lifecycle.
func (a *Agent) AgentStatus() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.config == nil:
		return StatusUnconfigured
	case a.session != nil && !a.session.resolved():
		return StatusAuthorizing
	case a.state.IsAuthorized():
		return StatusAuthorized
	default:
		return StatusConfigured
	}
}
