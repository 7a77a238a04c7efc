package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
callbackPort: 8765
defaultServer: sandbox
tokenStorage:
  backend: keyring
servers:
  - name: sandbox
    baseURL: https://launch.example.com/v/r4/fhir
    clientID: my-app
    additionalParameters:
      launch: abc
  - name: epic
    baseURL: https://fhir.example.org/api/FHIR/R4
    issuer: https://fhir.example.org/oauth2
    clientID: epic-app
    scopes: [launch/patient, patient/*.read]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8765, cfg.CallbackPort)
	assert.Equal(t, "keyring", cfg.TokenStorage.Backend)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, DefaultScopes, cfg.Servers[0].Scopes)
	assert.Equal(t, "abc", cfg.Servers[0].AdditionalParameters["launch"])
	assert.Equal(t, []string{"launch/patient", "patient/*.read"}, cfg.Servers[1].Scopes)

	server, err := cfg.Server("")
	require.NoError(t, err)
	assert.Equal(t, "sandbox", server.Name)

	server, err = cfg.Server("epic")
	require.NoError(t, err)
	assert.Equal(t, "https://fhir.example.org/oauth2", server.Issuer)
}

func TestLoadConfig_PartialFileGetsDefaults(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: only
    baseURL: http://localhost:8080/fhir
    clientID: app
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3000, cfg.CallbackPort)
	assert.Equal(t, "file", cfg.TokenStorage.Backend)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "servers: [\n")

	_, err := LoadConfig(path)
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, path, cfgErr.FilePath)
	assert.Contains(t, cfgErr.DetailedError(), path)
}

func TestLoadConfig_InvalidReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, `
logLevel: loud
tokenStorage:
  backend: s3
servers:
  - name: a
    baseURL: ftp://example.com
  - name: a
    baseURL: https://example.com/fhir
    clientID: app
`)

	_, err := LoadConfig(path)
	require.Error(t, err)

	var errs ConfigurationErrorCollection
	require.True(t, errors.As(err, &errs))

	fields := make([]string, 0, len(errs.Errors))
	for _, e := range errs.Errors {
		fields = append(fields, e.Field)
		assert.Equal(t, path, e.FilePath)
	}
	assert.ElementsMatch(t, []string{
		"logLevel",
		"tokenStorage.backend",
		"servers[0].baseURL",
		"servers[0].clientID",
		"servers[1].name",
	}, fields)
	assert.Contains(t, errs.Error(), "5 configuration errors")
	assert.Contains(t, errs.GetDetailedReport(), "Suggestions:")
}
