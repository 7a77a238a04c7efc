package smart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"smart/pkg/oauth"
)

// Server is a FHIR resource server protected by SMART authorization. It
// owns the Agent that authorizes against it.
type Server struct {
	baseURL *url.URL
	aud     string
	agent   *Agent
	logger  *slog.Logger

	// client signs requests with the agent's access token.
	client *http.Client

	mu   sync.RWMutex
	name string
}

// normalizeBaseURL makes sure the base URL ends with "/" so that relative
// resource paths resolve beneath it.
func normalizeBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Audience returns the normalized form of baseURL that a Server uses as
// its aud parameter and token storage key.
func Audience(baseURL string) (string, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	return base.String(), nil
}

func newServer(baseURL string, o *options) (*Server, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	o.audience = base.String()

	return &Server{
		baseURL: base,
		aud:     base.String(),
		logger:  o.logger,
		name:    o.name,
	}, nil
}

func (s *Server) attach(agent *Agent, httpClient *http.Client) {
	s.agent = agent

	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	signed := *httpClient
	signed.Transport = &bearerTransport{base: base, agent: agent}
	s.client = &signed
}

// NewServer creates a server at baseURL whose agent discovers issuer's
// configuration in the background.
func NewServer(ctx context.Context, baseURL, issuer string, opts ...Option) (*Server, error) {
	o := buildOptions(opts)
	s, err := newServer(baseURL, o)
	if err != nil {
		return nil, err
	}

	agent := newAgent(issuer, o)
	agent.discoverInBackground(ctx)
	s.attach(agent, o.httpClient)
	return s, nil
}

// NewServerWithConfiguration creates a server whose agent uses cfg as is.
func NewServerWithConfiguration(baseURL string, cfg *oauth.Configuration, opts ...Option) (*Server, error) {
	o := buildOptions(opts)
	s, err := newServer(baseURL, o)
	if err != nil {
		return nil, err
	}

	agent, err := newConfiguredAgent(cfg, o)
	if err != nil {
		return nil, err
	}
	s.attach(agent, o.httpClient)
	return s, nil
}

// NewServerFromCapabilityStatement reads the server's CapabilityStatement
// and configures the agent from its SMART oauth-uris security extension.
func NewServerFromCapabilityStatement(ctx context.Context, baseURL string, opts ...Option) (*Server, error) {
	o := buildOptions(opts)
	s, err := newServer(baseURL, o)
	if err != nil {
		return nil, err
	}

	cs, err := fetchCapabilityStatement(ctx, o.httpClient, s.resolve("metadata"))
	if err != nil {
		return nil, err
	}

	cfg, ok := oauthURIs(cs)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not advertise SMART oauth-uris", ErrDiscoveryFailed, s.aud)
	}
	cfg.Issuer = strings.TrimSuffix(s.aud, "/")

	agent, err := newConfiguredAgent(cfg, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	s.attach(agent, o.httpClient)
	s.adoptName(cs)
	return s, nil
}

// BaseURL returns the normalized base URL, ending with "/".
func (s *Server) BaseURL() string {
	return s.baseURL.String()
}

// Aud returns the value sent as the SMART "aud" authorization parameter.
func (s *Server) Aud() string {
	return s.aud
}

// Name returns the server's display name, from options or its
// CapabilityStatement.
func (s *Server) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetName overrides the server's display name.
func (s *Server) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Agent returns the server's authorization agent.
func (s *Server) Agent() *Agent {
	return s.agent
}

// IsAuthorized reports whether the agent holds a usable authorization.
func (s *Server) IsAuthorized() bool {
	return s.agent.State().IsAuthorized()
}

// RefreshToken returns the current refresh token, or "".
func (s *Server) RefreshToken() string {
	state := s.agent.State()
	if state == nil {
		return ""
	}
	return state.RefreshToken()
}

// RequestAuthorization starts an authorization attempt for this server.
// The "aud" parameter is set to the base URL unless params already has one.
func (s *Server) RequestAuthorization(ctx context.Context, params oauth.AuthorizationParameters, presenter Presenter) (*Session, error) {
	if _, ok := params.AdditionalParameters["aud"]; !ok {
		params = params.WithAdditionalParameter("aud", s.aud)
	}
	return s.agent.RequestAuthorization(ctx, params, presenter)
}

// HandleRedirect passes redirect to the agent. See Agent.HandleRedirect.
func (s *Server) HandleRedirect(ctx context.Context, redirect *url.URL) bool {
	return s.agent.HandleRedirect(ctx, redirect)
}

// CompleteAuthorization passes redirect to the agent and returns the outcome.
func (s *Server) CompleteAuthorization(ctx context.Context, redirect *url.URL) (*AuthState, error) {
	return s.agent.CompleteAuthorization(ctx, redirect)
}

// Reset clears the agent's authorization state, including stored tokens.
func (s *Server) Reset() error {
	return s.agent.Reset()
}

// HTTPClient returns a client that adds the bearer token to every request.
func (s *Server) HTTPClient() *http.Client {
	return s.client
}

func (s *Server) resolve(path string) string {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return s.baseURL.String() + strings.TrimPrefix(path, "/")
	}
	return s.baseURL.ResolveReference(ref).String()
}

const (
	// maxResourceSize limits FHIR response reads.
	maxResourceSize = 10 << 20

	// maxErrorBodySize limits how much of an error response is kept.
	maxErrorBodySize = 4 << 10
)

// Read fetches path, relative to the base URL, and returns the raw JSON.
func (s *Server) Read(ctx context.Context, path string) ([]byte, error) {
	return getJSON(ctx, s.client, s.resolve(path))
}

func getJSON(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			URL:        target,
			Challenge:  oauth.ParseWWWAuthenticateFromResponse(resp),
			Body:       body,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return body, nil
}

// LaunchPatientID returns the patient ID from the launch context.
func (s *Server) LaunchPatientID() (string, error) {
	state := s.agent.State()
	if state == nil {
		return "", ErrNoActiveState
	}
	if state.Patient() == "" {
		return "", ErrNoPatientContext
	}
	return state.Patient(), nil
}

// IsUnauthorized reports whether err is a 401 from the FHIR server or an
// authorization failure before the request was sent.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}
