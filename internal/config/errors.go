package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is a problem with one configuration field.
type ConfigurationError struct {
	FilePath    string   // File that caused the error, if any
	Field       string   // Offending field, e.g. "servers[0].baseURL"
	Message     string   // Human-readable error message
	Suggestions []string // Actionable suggestions to fix the error
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	if ce.Field == "" {
		return ce.Message
	}
	return fmt.Sprintf("%s: %s", ce.Field, ce.Message)
}

// DetailedError returns the error with its file and suggestions.
func (ce ConfigurationError) DetailedError() string {
	var parts []string
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("Configuration error in %s", ce.FilePath))
	} else {
		parts = append(parts, "Configuration error")
	}
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Error()))

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// ConfigurationErrorCollection holds multiple configuration errors
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError
}

// Error implements the error interface for the collection
func (cec ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}

	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}

	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Add adds a new error to the collection
func (cec *ConfigurationErrorCollection) Add(field, message string, suggestions ...string) {
	cec.Errors = append(cec.Errors, ConfigurationError{
		Field:       field,
		Message:     message,
		Suggestions: suggestions,
	})
}

// GetDetailedReport returns a detailed report of all errors
func (cec *ConfigurationErrorCollection) GetDetailedReport() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors to report"
	}

	var parts []string
	for _, err := range cec.Errors {
		parts = append(parts, err.DetailedError())
	}
	return strings.Join(parts, "\n")
}
