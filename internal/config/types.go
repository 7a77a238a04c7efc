package config

// Config is the top-level configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// CallbackPort is the loopback port receiving authorization redirects.
	CallbackPort int `yaml:"callbackPort"`

	// DefaultServer names the server used when none is given.
	DefaultServer string `yaml:"defaultServer,omitempty"`

	TokenStorage TokenStorageConfig `yaml:"tokenStorage"`

	Servers []ServerConfig `yaml:"servers"`
}

// TokenStorageConfig selects where authorization state is persisted.
type TokenStorageConfig struct {
	// Backend is one of file, keyring, memory.
	Backend string `yaml:"backend"`

	// Dir is the token directory for the file backend.
	Dir string `yaml:"dir,omitempty"`
}

// ServerConfig describes a FHIR server and the client registered with it.
type ServerConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseURL"`

	// Issuer is the authorization server. When empty the endpoints are read
	// from the server's CapabilityStatement.
	Issuer string `yaml:"issuer,omitempty"`

	ClientID     string   `yaml:"clientID"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`

	// RedirectURL overrides the loopback callback URL. It must be an http
	// URL on localhost or 127.0.0.1 whose port is CallbackPort.
	RedirectURL string `yaml:"redirectURL,omitempty"`

	// Launch is the EHR launch context token, when launched from an EHR.
	Launch string `yaml:"launch,omitempty"`

	AdditionalParameters map[string]string `yaml:"additionalParameters,omitempty"`
}

// Server returns the named server. An empty name selects the default
// server, or the only server when exactly one is configured.
func (c *Config) Server(name string) (*ServerConfig, error) {
	if name == "" {
		name = c.DefaultServer
	}
	if name == "" {
		if len(c.Servers) == 1 {
			return &c.Servers[0], nil
		}
		return nil, ConfigurationError{
			Field:   "defaultServer",
			Message: "no server selected",
			Suggestions: []string{
				"Pass --server with one of the configured server names",
				"Set defaultServer in the configuration file",
			},
		}
	}

	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i], nil
		}
	}

	return nil, ConfigurationError{
		Field:       "servers",
		Message:     "unknown server " + name,
		Suggestions: []string{"Configured servers: " + c.serverNames()},
	}
}

func (c *Config) serverNames() string {
	if len(c.Servers) == 0 {
		return "(none)"
	}
	names := ""
	for i, s := range c.Servers {
		if i > 0 {
			names += ", "
		}
		names += s.Name
	}
	return names
}
