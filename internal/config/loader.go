package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"smart/pkg/logging"
)

const (
	userConfigDir  = ".config/smart"
	configFileName = "config.yaml"
)

// DefaultConfigPath returns ~/.config/smart/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig loads, defaults and validates the configuration file at path.
// An empty path selects DefaultConfigPath. A missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config file found at %s, using defaults", path)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, ConfigurationError{
			FilePath:    path,
			Message:     fmt.Sprintf("malformed YAML: %v", err),
			Suggestions: []string{"Check indentation and quoting"},
		}
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		var errs ConfigurationErrorCollection
		if errors.As(err, &errs) {
			for i := range errs.Errors {
				errs.Errors[i].FilePath = path
			}
			return Config{}, errs
		}
		return Config{}, err
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}
