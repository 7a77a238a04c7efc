package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name tokens are filed under.
const DefaultKeyringService = "smart"

// Keyring stores tokens in the operating system keyring (macOS Keychain,
// Windows Credential Manager, Secret Service on Linux).
type Keyring struct {
	service string
}

// NewKeyring creates a keyring store under the given service name.
func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

// Load implements Store.
func (k *Keyring) Load(serverURL string) (*StoredToken, error) {
	secret, err := keyring.Get(k.service, Key(serverURL))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var token StoredToken
	if err := json.Unmarshal([]byte(secret), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	if !token.Usable() {
		_ = keyring.Delete(k.service, Key(serverURL))
		return nil, ErrNotFound
	}

	return &token, nil
}

// Save implements Store.
func (k *Keyring) Save(token *StoredToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := keyring.Set(k.service, Key(token.ServerURL), string(data)); err != nil {
		err = fmt.Errorf("failed to write keyring: %w", err)
		auditSave(token, err)
		return err
	}
	auditSave(token, nil)
	return nil
}

// Delete implements Store.
func (k *Keyring) Delete(serverURL string) error {
	err := keyring.Delete(k.service, Key(serverURL))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	auditDelete(serverURL, err)
	return err
}
