package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached configurations.
	DefaultMetadataCacheTTL = 30 * time.Minute

	// maxDocumentSize limits discovery document reads.
	maxDocumentSize = 1 << 20
)

// configCacheEntry holds a cached configuration with its timestamp.
type configCacheEntry struct {
	config    *Configuration
	fetchedAt time.Time
}

// Client performs authorization server discovery.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	cacheMu  sync.RWMutex
	cache    map[string]*configCacheEntry
	cacheTTL time.Duration

	// deduplicates concurrent discoveries of the same issuer
	group singleflight.Group
}

// ClientOption configures the discovery client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetadataCacheTTL sets the configuration cache TTL.
// A zero or negative TTL disables caching.
func WithMetadataCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// NewClient creates a new discovery client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		cache:      make(map[string]*configCacheEntry),
		cacheTTL:   DefaultMetadataCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HTTPClient returns the HTTP client used for discovery.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// DiscoverConfiguration fetches the issuer's configuration. It tries OpenID
// Connect discovery first, then the SMART App Launch document, then RFC 8414
// authorization server metadata.
//
// The issuer is passed to OpenID Connect discovery as given, since go-oidc
// compares it exactly with the document's issuer. Results are cached per
// issuer with a TTL and concurrent calls for the same issuer share one fetch.
func (c *Client) DiscoverConfiguration(ctx context.Context, issuer string) (*Configuration, error) {
	if strings.TrimSpace(issuer) == "" {
		return nil, errors.New("issuer is empty")
	}

	if cfg := c.cached(issuer); cfg != nil {
		return cfg, nil
	}

	result, err, _ := c.group.Do(issuer, func() (interface{}, error) {
		if cfg := c.cached(issuer); cfg != nil {
			return cfg, nil
		}
		return c.doDiscover(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Configuration), nil
}

func (c *Client) cached(issuer string) *Configuration {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	if entry, ok := c.cache[issuer]; ok && time.Since(entry.fetchedAt) < c.cacheTTL {
		return entry.config
	}
	return nil
}

// doDiscover performs the discovery fetches.
func (c *Client) doDiscover(ctx context.Context, issuer string) (*Configuration, error) {
	cfg, oidcErr := c.discoverOIDC(ctx, issuer)
	if oidcErr == nil {
		c.cacheConfiguration(issuer, cfg)
		return cfg, nil
	}

	c.logger.Debug("OpenID Connect discovery failed, trying SMART configuration",
		"issuer", issuer,
		"error", oidcErr)

	base := strings.TrimSuffix(issuer, "/")
	cfg, smartErr := c.fetchDocument(ctx, base, base+WellKnownSMARTPath)
	if smartErr == nil {
		c.cacheConfiguration(issuer, cfg)
		return cfg, nil
	}

	c.logger.Debug("SMART configuration fetch failed, trying RFC 8414",
		"issuer", issuer,
		"error", smartErr)

	cfg, oauthErr := c.fetchDocument(ctx, base, base+WellKnownOAuthServerPath)
	if oauthErr == nil {
		c.cacheConfiguration(issuer, cfg)
		return cfg, nil
	}

	return nil, fmt.Errorf("failed to discover configuration for %s: oidc: %v; smart: %v; oauth: %w",
		issuer, oidcErr, smartErr, oauthErr)
}

// discoverOIDC uses go-oidc, which also validates that the document's issuer
// matches the requested one.
func (c *Client) discoverOIDC(ctx context.Context, issuer string) (*Configuration, error) {
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, c.httpClient), issuer)
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	if err := provider.Claims(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse OpenID configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid OpenID configuration: %w", err)
	}
	cfg.provider = provider

	return &cfg, nil
}

// fetchDocument fetches a plain JSON discovery document.
func (c *Client) fetchDocument(ctx context.Context, issuer, documentURL string) (*Configuration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", documentURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse document: %w", documentURL, err)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = issuer
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid document: %w", documentURL, err)
	}

	return &cfg, nil
}

func (c *Client) cacheConfiguration(issuer string, cfg *Configuration) {
	c.cacheMu.Lock()
	c.cache[issuer] = &configCacheEntry{
		config:    cfg,
		fetchedAt: time.Now(),
	}
	c.cacheMu.Unlock()

	c.logger.Debug("Cached authorization server configuration",
		"issuer", issuer,
		"authorization_endpoint", cfg.AuthorizationEndpoint,
		"token_endpoint", cfg.TokenEndpoint)
}

// ClearCache drops all cached configurations.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	c.cache = make(map[string]*configCacheEntry)
	c.cacheMu.Unlock()
}
