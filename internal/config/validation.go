package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"smart/pkg/logging"
	"smart/pkg/oauth"
	"smart/pkg/tokenstore"
)

// Validate checks the configuration and returns a
// ConfigurationErrorCollection listing every problem found.
func (c *Config) Validate() error {
	var errs ConfigurationErrorCollection

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("logLevel", err.Error(), "Use one of: debug, info, warn, error")
	}

	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		errs.Add("callbackPort", fmt.Sprintf("port %d is out of range", c.CallbackPort))
	}

	switch tokenstore.Backend(strings.ToLower(c.TokenStorage.Backend)) {
	case tokenstore.BackendFile, tokenstore.BackendKeyring, tokenstore.BackendMemory:
	default:
		errs.Add("tokenStorage.backend", fmt.Sprintf("unknown backend %q", c.TokenStorage.Backend),
			"Use one of: file, keyring, memory")
	}

	seen := make(map[string]bool)
	for i, s := range c.Servers {
		field := fmt.Sprintf("servers[%d]", i)

		switch {
		case strings.TrimSpace(s.Name) == "":
			errs.Add(field+".name", "is required")
		case seen[s.Name]:
			errs.Add(field+".name", fmt.Sprintf("duplicate server name %q", s.Name))
		}
		seen[s.Name] = true

		if err := validateURL(s.BaseURL); err != nil {
			errs.Add(field+".baseURL", err.Error(), "Use the FHIR base URL, e.g. https://fhir.example.com/r4")
		}
		if s.Issuer != "" {
			if err := validateURL(s.Issuer); err != nil {
				errs.Add(field+".issuer", err.Error())
			}
		}
		if strings.TrimSpace(s.ClientID) == "" {
			errs.Add(field+".clientID", "is required",
				"Register the app with the authorization server and set its client ID")
		}
		if s.RedirectURL != "" {
			if err := validateRedirectURL(s.RedirectURL, c.CallbackPort); err != nil {
				errs.Add(field+".redirectURL", err.Error(),
					fmt.Sprintf("Use http://localhost:%d/callback or change callbackPort", c.CallbackPort))
			}
		}
		for _, k := range slices.Sorted(maps.Keys(s.AdditionalParameters)) {
			if oauth.IsReservedParameter(k) {
				errs.Add(fmt.Sprintf("%s.additionalParameters.%s", field, k), "is set by the client",
					"Use the scopes, clientID and redirectURL fields instead")
			}
		}
	}

	if c.DefaultServer != "" && !seen[c.DefaultServer] {
		errs.Add("defaultServer", fmt.Sprintf("no server named %q", c.DefaultServer),
			"Configured servers: "+c.serverNames())
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateRedirectURL checks that raw is served by the callback server.
func validateRedirectURL(raw string, callbackPort int) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" {
		return fmt.Errorf("must be an http URL, got %q", raw)
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
	default:
		return fmt.Errorf("host %q is not served by the callback server", u.Hostname())
	}
	if u.Port() != strconv.Itoa(callbackPort) {
		return fmt.Errorf("port %q does not match callbackPort %d", u.Port(), callbackPort)
	}
	return nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("has no host: %q", raw)
	}
	return nil
}
