package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultKeyName is the name the relay API key is stored under
const DefaultKeyName = "scraperapi"

// Key is a named relay API key
type Key struct {
	Name         string    `json:"name"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// KeyStore is the interface for storing and retrieving API keys
type KeyStore interface {
	// Store saves a key under its name
	Store(key *Key) error

	// Retrieve gets the key stored under name
	Retrieve(name string) (*Key, error)

	// List returns all stored keys
	List() ([]*Key, error)

	// Delete removes the key stored under name
	Delete(name string) error

	// Exists checks if a key is stored under name
	Exists(name string) bool
}

// Manager handles key storage with fallback mechanisms
type Manager struct {
	stores []KeyStore
}

// NewManager creates a key manager backed by the system keychain when
// available, an encrypted file and finally the environment
func NewManager() (*Manager, error) {
	var stores []KeyStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "keys.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit stores, tried in order
func NewManagerWithStores(stores ...KeyStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves value under name using the first store that accepts it
func (m *Manager) Store(name, value string) error {
	if name == "" {
		name = DefaultKeyName
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("API key is required")
	}

	key := &Key{Name: name, Value: value, LastModified: time.Now()}

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(key)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store API key: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the value stored under name from the first store that has it
func (m *Manager) Retrieve(name string) (string, error) {
	if name == "" {
		name = DefaultKeyName
	}
	for _, store := range m.stores {
		if key, err := store.Retrieve(name); err == nil && key != nil {
			return key.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
}

// List returns all stored keys sorted by name, newest version per name
func (m *Manager) List() ([]*Key, error) {
	byName := make(map[string]*Key)

	for _, store := range m.stores {
		keys, err := store.List()
		if err != nil {
			continue
		}
		for _, key := range keys {
			if existing, ok := byName[key.Name]; !ok || key.LastModified.After(existing.LastModified) {
				byName[key.Name] = key
			}
		}
	}

	result := make([]*Key, 0, len(byName))
	for _, key := range byName {
		result = append(result, key)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes name from every store that holds it
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultKeyName
	}

	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrKeyNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete API key: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "invasoras")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "invasoras")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "invasoras")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "invasoras")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskKey masks all but the first 4 and last 4 characters of a key
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrKeyNotFound      = errors.New("API key not found")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrStoreUnavailable = errors.New("key store unavailable")
)
