package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File stores each token as a JSON file named after the hashed server URL.
//
// SECURITY: files are created with 0600 permissions inside a 0700
// directory.
type File struct {
	mu  sync.Mutex
	dir string
}

// NewFile creates the storage directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// Dir returns the storage directory.
func (f *File) Dir() string {
	return f.dir
}

func (f *File) path(serverURL string) string {
	return filepath.Join(f.dir, Key(serverURL)+".json")
}

// Load implements Store. Unusable tokens are removed from disk.
func (f *File) Load(serverURL string) (*StoredToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// #nosec G304 -- path is derived from a hash, not user input
	data, err := os.ReadFile(f.path(serverURL))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	if !token.Usable() {
		_ = os.Remove(f.path(serverURL))
		return nil, ErrNotFound
	}

	return &token, nil
}

// Save implements Store.
func (f *File) Save(token *StoredToken) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	f.mu.Lock()
	err = os.WriteFile(f.path(token.ServerURL), data, 0600)
	f.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("failed to write token file: %w", err)
	}
	auditSave(token, err)
	return err
}

// Delete implements Store.
func (f *File) Delete(serverURL string) error {
	f.mu.Lock()
	err := os.Remove(f.path(serverURL))
	f.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	auditDelete(serverURL, err)
	return err
}
