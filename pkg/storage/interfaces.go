// Package storage persists client-side preferences, the local storage of
// the dashboard.
package storage

import "errors"

// Errors returned by preference stores
var (
	ErrPreferenceNotFound = errors.New("preference not found")
	ErrInvalidNamespace   = errors.New("invalid preference namespace")
)

// DefaultNamespace is the profile used when none is configured
const DefaultNamespace = "default"

// StorageProvider defines the interface for persistence backends
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetPreferenceStore returns the store for a namespace (profile)
	GetPreferenceStore(namespace string) (PreferenceStore, error)
}

// PreferenceStore is a string key/value store with local storage semantics:
// reading a missing key is not an error and removing one is a no-op.
type PreferenceStore interface {
	// GetItem returns the value for key and whether it was present
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value
	SetItem(key, value string) error

	// RemoveItem deletes key
	RemoveItem(key string) error
}

// lookup adapts a getter that reports ErrPreferenceNotFound to GetItem's
// (value, ok, err) form
func lookup(value string, err error) (string, bool, error) {
	if errors.Is(err, ErrPreferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func validNamespace(namespace string) (string, error) {
	if namespace == "" {
		return DefaultNamespace, nil
	}
	for _, r := range namespace {
		if r == '/' || r == '\\' || r == ':' || r < 0x20 {
			return "", ErrInvalidNamespace
		}
	}
	return namespace, nil
}
