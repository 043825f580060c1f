package auth

import (
	"os"
	"time"
)

// APIKeyEnv is the environment variable read by EnvironmentStore
const APIKeyEnv = "INVASORAS_API_KEY"

// EnvironmentStore implements a read-only KeyStore over INVASORAS_API_KEY.
// It answers for any name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based key store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(key *Key) error {
	return ErrStoreUnavailable
}

// Retrieve returns the key held in the environment
func (e *EnvironmentStore) Retrieve(name string) (*Key, error) {
	value := os.Getenv(APIKeyEnv)
	if value == "" {
		return nil, ErrKeyNotFound
	}

	if name == "" {
		name = DefaultKeyName
	}

	return &Key{
		Name:         name,
		Value:        value,
		LastModified: time.Now(),
	}, nil
}

// List returns a single key if the environment variable is set
func (e *EnvironmentStore) List() ([]*Key, error) {
	key, err := e.Retrieve("")
	if err != nil {
		return []*Key{}, nil
	}
	return []*Key{key}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment holds a key
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(APIKeyEnv) != ""
}
