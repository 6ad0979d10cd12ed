package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/aurzen/unearthedarcana/internal/ports"
)

// MemoryStore is a process-local ConfigStore for tests and tokenless
// local runs. State does not survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]map[string]string
}

var _ ports.ConfigStore = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: map[string]map[string]string{}}
}

// Get returns the value for (community, key).
func (m *MemoryStore) Get(_ context.Context, community, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values, ok := m.settings[community]
	if !ok {
		return "", false, nil
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set stores the value for (community, key).
func (m *MemoryStore) Set(_ context.Context, community, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings[community] == nil {
		m.settings[community] = map[string]string{}
	}
	m.settings[community][key] = value
	return nil
}

// Delete removes the value for (community, key).
func (m *MemoryStore) Delete(_ context.Context, community, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if values, ok := m.settings[community]; ok {
		delete(values, key)
	}
	return nil
}

// Communities lists known communities in stable order.
func (m *MemoryStore) Communities(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	communities := make([]string, 0, len(m.settings))
	for community := range m.settings {
		communities = append(communities, community)
	}
	sort.Strings(communities)
	return communities, nil
}
