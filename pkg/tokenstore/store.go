package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"smart/pkg/logging"
)

// Store persists tokens keyed by resource server URL.
type Store interface {
	// Load returns the token stored for serverURL, or ErrNotFound.
	Load(serverURL string) (*StoredToken, error)

	// Save stores token under its ServerURL, replacing any previous token.
	Save(token *StoredToken) error

	// Delete removes the token stored for serverURL. Deleting a missing
	// token is not an error.
	Delete(serverURL string) error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendMemory  Backend = "memory"
	BackendFile    Backend = "file"
	BackendKeyring Backend = "keyring"
)

// DefaultStorageDir is the default directory for file-backed tokens,
// relative to the user's home directory.
const DefaultStorageDir = ".config/smart/tokens"

// Open creates the store for backend. dir is only used by the file backend
// and defaults to DefaultStorageDir under the home directory.
func Open(backend Backend, dir string) (Store, error) {
	switch Backend(strings.ToLower(string(backend))) {
	case BackendMemory:
		return NewMemory(), nil
	case "", BackendFile:
		if dir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(homeDir, DefaultStorageDir)
		}
		return NewFile(dir)
	case BackendKeyring:
		return NewKeyring(DefaultKeyringService), nil
	default:
		return nil, fmt.Errorf("unknown token storage backend %q", backend)
	}
}

func auditSave(token *StoredToken, err error) {
	event := logging.AuditEvent{
		Action:  "token_stored",
		Outcome: "success",
		Target:  token.ServerURL,
	}
	if err != nil {
		event.Outcome = "failure"
		event.Error = err.Error()
	}
	logging.Audit(event)
}

func auditDelete(serverURL string, err error) {
	event := logging.AuditEvent{
		Action:  "token_deleted",
		Outcome: "success",
		Target:  serverURL,
	}
	if err != nil {
		event.Outcome = "failure"
		event.Error = err.Error()
	}
	logging.Audit(event)
}
