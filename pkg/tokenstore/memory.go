package tokenstore

import (
	"sync"
)

// Memory keeps tokens for the lifetime of the process.
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]*StoredToken
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]*StoredToken)}
}

// Load implements Store.
func (m *Memory) Load(serverURL string) (*StoredToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, ok := m.tokens[Key(serverURL)]
	if !ok || !token.Usable() {
		return nil, ErrNotFound
	}
	copied := *token
	return &copied, nil
}

// Save implements Store.
func (m *Memory) Save(token *StoredToken) error {
	copied := *token

	m.mu.Lock()
	m.tokens[Key(token.ServerURL)] = &copied
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(serverURL string) error {
	m.mu.Lock()
	delete(m.tokens, Key(serverURL))
	m.mu.Unlock()
	return nil
}
