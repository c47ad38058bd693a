// Package session holds the credential store shared by every authenticated
// call path. The login/logout flow is the only writer; everyone else reads.
package session

import (
	"context"
	"errors"
	"sync"
)

// TokenKey is the storage key for the bearer token.
const TokenKey = "jwtToken"

// ErrNoToken is returned when no credential is stored.
var ErrNoToken = errors.New("no stored credential")

// Store is the credential store capability.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *MemoryStore) Set(_ context.Context, token string) error {
	if token == "" {
		return errors.New("refusing to store an empty token")
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
