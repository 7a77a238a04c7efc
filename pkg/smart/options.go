package smart

import (
	"log/slog"
	"net/http"
	"time"

	"smart/pkg/oauth"
	"smart/pkg/tokenstore"
)

// DefaultHTTPTimeout bounds every request the agent and server make.
const DefaultHTTPTimeout = 30 * time.Second

type options struct {
	httpClient   *http.Client
	logger       *slog.Logger
	store        tokenstore.Store
	discovery    *oauth.Client
	clientID     string
	clientSecret string
	audience     string
	name         string
}

// Option configures an Agent or a Server.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for discovery, token requests
// and FHIR requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTokenStore persists authorization state so that it survives restarts.
func WithTokenStore(store tokenstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithDiscoveryClient shares a discovery client, and its cache, between agents.
func WithDiscoveryClient(client *oauth.Client) Option {
	return func(o *options) {
		o.discovery = client
	}
}

// WithClientCredentials sets the client used to refresh a restored token.
// RequestAuthorization replaces them with the parameters' client.
func WithClientCredentials(clientID, clientSecret string) Option {
	return func(o *options) {
		o.clientID = clientID
		o.clientSecret = clientSecret
	}
}

// WithAudience sets the key the agent persists its state under. A Server
// sets it to its base URL; a standalone agent defaults to its issuer.
func WithAudience(aud string) Option {
	return func(o *options) {
		o.audience = aud
	}
}

// WithName sets the server's display name, overriding the
// CapabilityStatement's.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.discovery == nil {
		o.discovery = oauth.NewClient(oauth.WithHTTPClient(o.httpClient), oauth.WithLogger(o.logger))
	}
	return o
}
