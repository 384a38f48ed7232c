package storage

import "sync"

// MemoryProvider implements the StorageProvider interface using in-memory storage
type MemoryProvider struct {
	mu     sync.Mutex
	stores map[string]*MemoryPreferenceStore
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		stores: make(map[string]*MemoryPreferenceStore),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetPreferenceStore returns the store for a namespace. Stores are kept for
// the lifetime of the provider.
func (p *MemoryProvider) GetPreferenceStore(namespace string) (PreferenceStore, error) {
	namespace, err := validNamespace(namespace)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	store, ok := p.stores[namespace]
	if !ok {
		store = NewMemoryPreferenceStore()
		p.stores[namespace] = store
	}
	return store, nil
}

// MemoryPreferenceStore implements the PreferenceStore interface using in-memory storage
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryPreferenceStore creates a new in-memory preference store
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{
		items: make(map[string]string),
	}
}

func (s *MemoryPreferenceStore) get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	if !ok {
		return "", ErrPreferenceNotFound
	}
	return value, nil
}

// GetItem returns the value for key
func (s *MemoryPreferenceStore) GetItem(key string) (string, bool, error) {
	return lookup(s.get(key))
}

// SetItem stores value under key
func (s *MemoryPreferenceStore) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// RemoveItem deletes key
func (s *MemoryPreferenceStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
