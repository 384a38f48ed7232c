package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileProviderConfig contains configuration for the file provider
type FileProviderConfig struct {
	// Path of the JSON document holding every namespace
	Path string
}

// FileProvider keeps all namespaces in one JSON document on disk:
// {"namespace": {"key": "value"}}. Every write rewrites the file.
type FileProvider struct {
	path string

	mu   sync.Mutex
	data map[string]map[string]string
}

// NewFileProvider creates a file-backed storage provider
func NewFileProvider(config FileProviderConfig) (*FileProvider, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("file provider requires a path")
	}
	return &FileProvider{
		path: config.Path,
		data: make(map[string]map[string]string),
	}, nil
}

// Initialize loads the document. A missing file is an empty store; a
// corrupted one is reported.
func (p *FileProvider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read preferences file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	data := make(map[string]map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse preferences file: %w", err)
	}
	p.data = data
	return nil
}

// Close cleans up resources
func (p *FileProvider) Close() error {
	return nil
}

// Path returns the location of the preferences document
func (p *FileProvider) Path() string {
	return p.path
}

// GetPreferenceStore returns a view of one namespace
func (p *FileProvider) GetPreferenceStore(namespace string) (PreferenceStore, error) {
	namespace, err := validNamespace(namespace)
	if err != nil {
		return nil, err
	}
	return &filePreferenceStore{provider: p, namespace: namespace}, nil
}

// save writes the document atomically. Callers hold p.mu.
func (p *FileProvider) save() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to replace preferences file: %w", err)
	}
	return nil
}

type filePreferenceStore struct {
	provider  *FileProvider
	namespace string
}

func (s *filePreferenceStore) get(key string) (string, error) {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()
	value, ok := s.provider.data[s.namespace][key]
	if !ok {
		return "", ErrPreferenceNotFound
	}
	return value, nil
}

func (s *filePreferenceStore) GetItem(key string) (string, bool, error) {
	return lookup(s.get(key))
}

func (s *filePreferenceStore) SetItem(key, value string) error {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()
	items, ok := s.provider.data[s.namespace]
	if !ok {
		items = make(map[string]string)
		s.provider.data[s.namespace] = items
	}
	items[key] = value
	return s.provider.save()
}

func (s *filePreferenceStore) RemoveItem(key string) error {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()
	items, ok := s.provider.data[s.namespace]
	if !ok {
		return nil
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return s.provider.save()
}
