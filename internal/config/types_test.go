package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Server(t *testing.T) {
	cfg := Config{Servers: []ServerConfig{{Name: "a"}, {Name: "b"}}}

	t.Run("by name", func(t *testing.T) {
		s, err := cfg.Server("b")
		require.NoError(t, err)
		assert.Equal(t, "b", s.Name)
	})

	t.Run("unknown name lists servers", func(t *testing.T) {
		_, err := cfg.Server("c")
		require.Error(t, err)
		var cfgErr ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, []string{"Configured servers: a, b"}, cfgErr.Suggestions)
	})

	t.Run("ambiguous without default", func(t *testing.T) {
		_, err := cfg.Server("")
		assert.Error(t, err)
	})

	t.Run("default server", func(t *testing.T) {
		withDefault := cfg
		withDefault.DefaultServer = "a"
		s, err := withDefault.Server("")
		require.NoError(t, err)
		assert.Equal(t, "a", s.Name)
	})

	t.Run("single server needs no default", func(t *testing.T) {
		single := Config{Servers: []ServerConfig{{Name: "only"}}}
		s, err := single.Server("")
		require.NoError(t, err)
		assert.Equal(t, "only", s.Name)
	})

	t.Run("returned server aliases config", func(t *testing.T) {
		s, err := cfg.Server("a")
		require.NoError(t, err)
		s.ClientID = "changed"
		assert.Equal(t, "changed", cfg.Servers[0].ClientID)
		cfg.Servers[0].ClientID = ""
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := GetDefaultConfig()
		cfg.Servers = []ServerConfig{{
			Name:     "sandbox",
			BaseURL:  "https://fhir.example.com/r4",
			ClientID: "app",
		}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no servers", func(c *Config) { c.Servers = nil }, ""},
		{"bad port", func(c *Config) { c.CallbackPort = 70000 }, "callbackPort"},
		{"bad issuer", func(c *Config) { c.Servers[0].Issuer = "not a url" }, "servers[0].issuer"},
		{"missing host", func(c *Config) { c.Servers[0].BaseURL = "https://" }, "servers[0].baseURL"},
		{"unknown default", func(c *Config) { c.DefaultServer = "other" }, "defaultServer"},
		{"backend case insensitive", func(c *Config) { c.TokenStorage.Backend = "Keyring" }, ""},
		{"redirect on callback port", func(c *Config) { c.Servers[0].RedirectURL = "http://127.0.0.1:3000/oauth/done" }, ""},
		{"redirect on other port", func(c *Config) { c.Servers[0].RedirectURL = "http://localhost:8080/callback" }, "servers[0].redirectURL"},
		{"redirect without port", func(c *Config) { c.Servers[0].RedirectURL = "http://localhost/callback" }, "servers[0].redirectURL"},
		{"redirect on remote host", func(c *Config) { c.Servers[0].RedirectURL = "https://app.example.com:3000/callback" }, "servers[0].redirectURL"},
		{"reserved additional parameter", func(c *Config) {
			c.Servers[0].AdditionalParameters = map[string]string{"prompt": "login", "state": "fixed"}
		}, "servers[0].additionalParameters.state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := ConfigurationError{
		FilePath:    "/tmp/config.yaml",
		Field:       "servers[0].clientID",
		Message:     "is required",
		Suggestions: []string{"Set it"},
	}

	assert.Equal(t, "servers[0].clientID: is required", err.Error())
	assert.Equal(t, "Configuration error in /tmp/config.yaml\n"+
		"  Error: servers[0].clientID: is required\n"+
		"  Suggestions:\n"+
		"    - Set it", err.DetailedError())

	assert.Equal(t, "plain", ConfigurationError{Message: "plain"}.Error())
	assert.Equal(t, "no configuration errors", ConfigurationErrorCollection{}.Error())
}
