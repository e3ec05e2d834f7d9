// Package tokenstore persists the session bearer token so it survives a
// reload of the browser profile that owns it.
package tokenstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrInvalidKey = errors.New("tokenstore: origin and profile are required")

// Key scopes a stored token to an origin and a browser profile.
type Key struct {
	Origin  string
	Profile string
}

func (k Key) normalized() (Key, error) {
	k.Origin = strings.TrimRight(strings.TrimSpace(k.Origin), "/")
	k.Profile = strings.TrimSpace(k.Profile)
	if k.Origin == "" || k.Profile == "" {
		return Key{}, ErrInvalidKey
	}
	return k, nil
}

// Backend holds tokens for many keys.
type Backend interface {
	Load(ctx context.Context, key Key) (string, bool, error)
	Save(ctx context.Context, key Key, token string) error
	Delete(ctx context.Context, key Key) error
	Ping(ctx context.Context) error
	Close() error
}

// Store is the single-token view a session works with. Set overwrites
// unconditionally; the store never inspects the token.
type Store interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Bind returns the Store for key on backend.
func Bind(backend Backend, key Key) Store {
	return &bound{backend: backend, key: key}
}

type bound struct {
	backend Backend
	key     Key
}

func (b *bound) Get(ctx context.Context) (string, bool, error) {
	return b.backend.Load(ctx, b.key)
}

func (b *bound) Set(ctx context.Context, token string) error {
	return b.backend.Save(ctx, b.key, token)
}

func (b *bound) Clear(ctx context.Context) error {
	return b.backend.Delete(ctx, b.key)
}

// Memory is a process-local Backend.
type Memory struct {
	mu     sync.RWMutex
	tokens map[Key]string
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[Key]string)}
}

func (m *Memory) Load(_ context.Context, key Key) (string, bool, error) {
	key, err := key.normalized()
	if err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[key]
	return token, ok, nil
}

func (m *Memory) Save(_ context.Context, key Key, token string) error {
	key, err := key.normalized()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.tokens[key] = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	key, err := key.normalized()
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.tokens, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
