package config

import (
	"smart/internal/callback"
	"smart/pkg/tokenstore"
)

// DefaultScopes are requested when a server configures none.
var DefaultScopes = []string{"openid", "fhirUser", "launch/patient", "patient/*.read", "offline_access"}

// GetDefaultConfig returns the configuration used without a config file.
func GetDefaultConfig() Config {
	return Config{
		LogLevel:     "info",
		CallbackPort: callback.DefaultPort,
		TokenStorage: TokenStorageConfig{
			Backend: string(tokenstore.BackendFile),
		},
	}
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	defaults := GetDefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.CallbackPort == 0 {
		c.CallbackPort = defaults.CallbackPort
	}
	if c.TokenStorage.Backend == "" {
		c.TokenStorage.Backend = defaults.TokenStorage.Backend
	}
	for i := range c.Servers {
		if len(c.Servers[i].Scopes) == 0 {
			c.Servers[i].Scopes = append([]string(nil), DefaultScopes...)
		}
	}
}
