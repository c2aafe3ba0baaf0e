// Package mock provides an in-memory store.Backend with error injection for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// Backend is a mock implementation of store.Backend.
type Backend struct {
	mu      sync.RWMutex
	members map[string]store.Profile

	// Error injection
	GetError   error
	AddError   error
	TouchError error
	ListError  error

	// Call counters
	TouchCalls int
}

// NewBackend creates an empty mock backend.
func NewBackend() *Backend {
	return &Backend{members: make(map[string]store.Profile)}
}

// Put stores a profile directly, bypassing validation.
func (m *Backend) Put(key string, p store.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[key] = p
}

// Profile returns the stored profile and whether it exists.
func (m *Backend) Profile(key string) (store.Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.members[key]
	return p, ok
}

func (m *Backend) Get(ctx context.Context, key string) (*store.Profile, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.members[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *Backend) Add(ctx context.Context, key string, p store.Profile) error {
	if m.AddError != nil {
		return m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[key]; ok {
		return store.ErrAlreadyExists
	}
	m.members[key] = p
	return nil
}

func (m *Backend) Touch(ctx context.Context, key string, at store.Timestamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TouchCalls++
	if m.TouchError != nil {
		return m.TouchError
	}
	p, ok := m.members[key]
	if !ok {
		return store.ErrNotFound
	}
	p.LastAttendance = at
	m.members[key] = p
	return nil
}

func (m *Backend) List(ctx context.Context) ([]store.Member, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Member, 0, len(m.members))
	for key, p := range m.members {
		out = append(out, store.Member{Key: key, Profile: p})
	}
	return out, nil
}

func (m *Backend) Close() error {
	return nil
}
