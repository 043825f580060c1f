package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// memoryStore is an in-memory KeyStore for manager tests
type memoryStore struct {
	mu   sync.Mutex
	keys map[string]Key
	fail error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: make(map[string]Key)}
}

func (m *memoryStore) Store(key *Key) error {
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.Name] = *key
	return nil
}

func (m *memoryStore) Retrieve(name string) (*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[name]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &key, nil
}

func (m *memoryStore) List() ([]*Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []*Key
	for _, k := range m.keys {
		k := k
		keys = append(keys, &k)
	}
	return keys, nil
}

func (m *memoryStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[name]; !ok {
		return ErrKeyNotFound
	}
	delete(m.keys, name)
	return nil
}

func (m *memoryStore) Exists(name string) bool {
	_, err := m.Retrieve(name)
	return err == nil
}

func TestManagerStoreRetrieveDelete(t *testing.T) {
	store := newMemoryStore()
	manager := NewManagerWithStores(store)

	require.NoError(t, manager.Store("", "  abcd1234efgh5678  "))

	value, err := manager.Retrieve(DefaultKeyName)
	require.NoError(t, err)
	assert.Equal(t, "abcd1234efgh5678", value)

	keys, err := manager.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, DefaultKeyName, keys[0].Name)
	assert.False(t, keys[0].LastModified.IsZero())

	require.NoError(t, manager.Delete(""))
	_, err = manager.Retrieve(DefaultKeyName)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.ErrorIs(t, manager.Delete(DefaultKeyName), ErrKeyNotFound)
}

func TestManagerRejectsEmptyKey(t *testing.T) {
	manager := NewManagerWithStores(newMemoryStore())
	assert.Error(t, manager.Store("scraperapi", "   "))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := newMemoryStore()
	broken.fail = errors.New("keychain locked")
	working := newMemoryStore()

	manager := NewManagerWithStores(broken, working)
	require.NoError(t, manager.Store("backup", "key-value-0001"))

	assert.False(t, broken.Exists("backup"))
	assert.True(t, working.Exists("backup"))
}

func TestManagerEnvironmentFallback(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-environment")

	manager := NewManagerWithStores(newMemoryStore(), NewEnvironmentStore())

	value, err := manager.Retrieve("anything")
	require.NoError(t, err)
	assert.Equal(t, "from-environment", value)
}

func TestManagerListKeepsNewest(t *testing.T) {
	older := newMemoryStore()
	newer := newMemoryStore()
	older.keys["scraperapi"] = Key{Name: "scraperapi", Value: "old", LastModified: time.Now().Add(-time.Hour)}
	newer.keys["scraperapi"] = Key{Name: "scraperapi", Value: "new", LastModified: time.Now()}

	keys, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "new", keys[0].Value)
}

func TestManagerListSortedByName(t *testing.T) {
	store := newMemoryStore()
	store.keys["scraperapi"] = Key{Name: "scraperapi", Value: "a"}
	store.keys["backup"] = Key{Name: "backup", Value: "b"}

	keys, err := NewManagerWithStores(store).List()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "backup", keys[0].Name)
	assert.Equal(t, "scraperapi", keys[1].Name)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	assert.False(t, store.Exists("scraperapi"))
	require.NoError(t, store.Store(&Key{Name: "scraperapi", Value: "secret-1234"}))
	assert.True(t, store.Exists("scraperapi"))

	key, err := store.Retrieve("scraperapi")
	require.NoError(t, err)
	assert.Equal(t, "secret-1234", key.Value)

	require.NoError(t, store.Delete("scraperapi"))
	_, err = store.Retrieve("scraperapi")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, store.Delete("scraperapi"), ErrKeyNotFound)

	assert.ErrorIs(t, store.Store(&Key{}), ErrInvalidKey)
}

func TestKeyringStoreList(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	keys, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, store.Store(&Key{Name: "scraperapi", Value: "a"}))
	require.NoError(t, store.Store(&Key{Name: "backup", Value: "b"}))
	require.NoError(t, store.Store(&Key{Name: "scraperapi", Value: "c"}))

	keys, err = store.List()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "backup", keys[0].Name)
	assert.Equal(t, "c", keys[1].Value)

	require.NoError(t, store.Delete("backup"))
	keys, err = store.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "scraperapi", keys[0].Name)
}

func TestKeyringStoreUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)

	_, err := NewKeyringStore()
	assert.Error(t, err)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keys.enc")

	store, err := NewEncryptedFileStoreWithPassphrase(path, "correct horse battery staple")
	require.NoError(t, err)

	require.NoError(t, store.Store(&Key{Name: "scraperapi", Value: "first-key-value"}))
	require.NoError(t, store.Store(&Key{Name: "backup", Value: "second-key-value"}))

	// The key must not be readable on disk
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("first-key-value")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewEncryptedFileStoreWithPassphrase(path, "correct horse battery staple")
	require.NoError(t, err)

	key, err := reopened.Retrieve("scraperapi")
	require.NoError(t, err)
	assert.Equal(t, "first-key-value", key.Value)

	keys, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, reopened.Delete("scraperapi"))
	assert.False(t, reopened.Exists("scraperapi"))
	require.NoError(t, reopened.Delete("backup"))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should be removed with the last key")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")

	store, err := NewEncryptedFileStoreWithPassphrase(path, "right")
	require.NoError(t, err)
	require.NoError(t, store.Store(&Key{Name: "scraperapi", Value: "v"}))

	other, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	require.NoError(t, err)

	_, err = other.Retrieve("scraperapi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}

func TestEncryptedFileStorePassphraseFromEnvironment(t *testing.T) {
	t.Setenv(PassphraseEnv, "env-passphrase")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "keys.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Key{Name: "scraperapi", Value: "value-1"}))

	again, err := NewEncryptedFileStoreWithPassphrase(filepath.Join(dir, "keys.enc"), "env-passphrase")
	require.NoError(t, err)
	assert.True(t, again.Exists("scraperapi"))
}

func TestEncryptedFileStoreGeneratedPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	configDir, err := getConfigDir()
	require.NoError(t, err)

	store, err := NewEncryptedFileStore(filepath.Join(configDir, "keys.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Key{Name: "scraperapi", Value: "value-2"}))

	// A second store reuses the persisted passphrase
	again, err := NewEncryptedFileStore(filepath.Join(configDir, "keys.enc"))
	require.NoError(t, err)
	key, err := again.Retrieve("scraperapi")
	require.NoError(t, err)
	assert.Equal(t, "value-2", key.Value)
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(APIKeyEnv, "")
	assert.False(t, store.Exists(""))
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	t.Setenv(APIKeyEnv, "env-key-12345")
	key, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyName, key.Name)
	assert.Equal(t, "env-key-12345", key.Value)

	assert.ErrorIs(t, store.Store(key), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("x"), ErrStoreUnavailable)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "********", MaskKey("short"))
	assert.Equal(t, "abcd...6789", MaskKey("abcdef0123456789"))
}

func TestShowKeyGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowKeyGuide(&buf)
	assert.Contains(t, buf.String(), APIKeyEnv)
}
