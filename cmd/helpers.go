package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"smart/internal/callback"
	"smart/internal/config"
	"smart/pkg/logging"
	"smart/pkg/oauth"
	"smart/pkg/smart"
	"smart/pkg/tokenstore"
)

// DefaultRequestTimeout bounds discovery and FHIR reads.
const DefaultRequestTimeout = 30 * time.Second

// loadServerConfig loads the configuration and selects the --server entry.
func loadServerConfig() (config.Config, *config.ServerConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if len(cfg.Servers) == 0 {
		return config.Config{}, nil, config.ConfigurationError{
			Field:       "servers",
			Message:     "no servers configured",
			Suggestions: []string{"Add a server with a baseURL and clientID to the configuration file"},
		}
	}
	sc, err := cfg.Server(serverName)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, sc, nil
}

// openStore opens the configured token store.
func openStore(cfg config.Config) (tokenstore.Store, error) {
	dir := cfg.TokenStorage.Dir
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, dir[2:])
	}
	return tokenstore.Open(tokenstore.Backend(strings.ToLower(cfg.TokenStorage.Backend)), dir)
}

// connect builds the smart.Server for sc. With an issuer the agent
// discovers its configuration from the issuer, otherwise from the server's
// CapabilityStatement. It returns once the agent is configured.
func connect(ctx context.Context, sc *config.ServerConfig, store tokenstore.Store) (*smart.Server, error) {
	opts := []smart.Option{
		smart.WithLogger(logging.Logger("SMART")),
		smart.WithTokenStore(store),
		smart.WithClientCredentials(sc.ClientID, sc.ClientSecret),
		smart.WithName(sc.Name),
	}

	if sc.Issuer == "" {
		return smart.NewServerFromCapabilityStatement(ctx, sc.BaseURL, opts...)
	}

	server, err := smart.NewServer(ctx, sc.BaseURL, sc.Issuer, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := server.Agent().WaitForConfiguration(ctx); err != nil {
		return nil, err
	}
	return server, nil
}

// authorizationParameters builds the authorization parameters for sc.
func authorizationParameters(sc *config.ServerConfig, redirectURL string) oauth.AuthorizationParameters {
	params := oauth.AuthorizationParameters{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		Scopes:       sc.Scopes,
		RedirectURL:  redirectURL,
		ResponseType: oauth.ResponseTypeCode,
	}
	for k, v := range sc.AdditionalParameters {
		params = params.WithAdditionalParameter(k, v)
	}
	if sc.Launch != "" {
		params = params.WithAdditionalParameter("launch", sc.Launch)
	}
	return params
}

// callbackOptions serves the configured redirect URL's host and path. Its
// port was checked against callbackPort when the configuration loaded.
func callbackOptions(sc *config.ServerConfig) []callback.Option {
	if sc.RedirectURL == "" {
		return nil
	}
	u, err := url.Parse(sc.RedirectURL)
	if err != nil {
		return nil
	}
	var opts []callback.Option
	if host := u.Hostname(); host != "" {
		opts = append(opts, callback.WithHost(host))
	}
	if u.Path != "" {
		opts = append(opts, callback.WithPath(u.Path))
	}
	return opts
}

// newTable creates a table with the standard styling.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// formatExpiry formats a token expiry relative to now.
func formatExpiry(expiry time.Time) string {
	if expiry.IsZero() {
		return text.FgHiBlack.Sprint("never")
	}
	remaining := time.Until(expiry)
	if remaining <= 0 {
		return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
	}
	return fmt.Sprintf("in %s", formatDuration(remaining))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
