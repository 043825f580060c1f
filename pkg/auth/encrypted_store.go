package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// PassphraseEnv overrides the generated passphrase of the key file
	PassphraseEnv = "INVASORAS_PASSPHRASE"
)

// EncryptedFileStore implements KeyStore using an AES-GCM encrypted file
// whose key is derived from a passphrase with PBKDF2
type EncryptedFileStore struct {
	filepath   string
	passphrase string
	mu         sync.RWMutex
}

// keyFile is the on-disk envelope
type keyFile struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore creates a store at filePath. The passphrase comes
// from INVASORAS_PASSPHRASE or a generated file next to the config.
func NewEncryptedFileStore(filePath string) (*EncryptedFileStore, error) {
	passphrase, err := getPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return NewEncryptedFileStoreWithPassphrase(filePath, passphrase)
}

// NewEncryptedFileStoreWithPassphrase creates a store at filePath
// encrypted with passphrase
func NewEncryptedFileStoreWithPassphrase(filePath, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	dir := filepath.Dir(filePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return &EncryptedFileStore{filepath: filePath, passphrase: passphrase}, nil
}

// Store saves a key to the encrypted file
func (e *EncryptedFileStore) Store(key *Key) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if key == nil || key.Name == "" {
		return ErrInvalidKey
	}

	keys, salt, err := e.load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load existing keys: %w", err)
	}
	if keys == nil {
		keys = make(map[string]Key)
	}

	keys[key.Name] = *key
	return e.save(keys, salt)
}

// Retrieve gets a key from the encrypted file
func (e *EncryptedFileStore) Retrieve(name string) (*Key, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if name == "" {
		return nil, ErrInvalidKey
	}

	keys, _, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}

	key, ok := keys[name]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &key, nil
}

// List returns all keys in the file
func (e *EncryptedFileStore) List() ([]*Key, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys, _, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return []*Key{}, nil
		}
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}

	result := make([]*Key, 0, len(keys))
	for _, key := range keys {
		k := key
		result = append(result, &k)
	}
	return result, nil
}

// Delete removes a key; the file goes away with the last key
func (e *EncryptedFileStore) Delete(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if name == "" {
		return ErrInvalidKey
	}

	keys, salt, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to load keys: %w", err)
	}

	if _, ok := keys[name]; !ok {
		return ErrKeyNotFound
	}
	delete(keys, name)

	if len(keys) == 0 {
		return os.Remove(e.filepath)
	}
	return e.save(keys, salt)
}

// Exists checks if a key is in the file
func (e *EncryptedFileStore) Exists(name string) bool {
	key, err := e.Retrieve(name)
	return err == nil && key != nil
}

// load reads and decrypts the file, returning the keys and the salt
func (e *EncryptedFileStore) load() (map[string]Key, []byte, error) {
	content, err := os.ReadFile(e.filepath)
	if err != nil {
		return nil, nil, err
	}

	var file keyFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(file.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plaintext, err := decrypt(ciphertext, e.deriveKey(salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	var keys map[string]Key
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, nil, fmt.Errorf("failed to parse keys: %w", err)
	}

	return keys, salt, nil
}

// save encrypts keys and atomically replaces the file. A nil salt is
// generated fresh.
func (e *EncryptedFileStore) save(keys map[string]Key, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plaintext, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal keys: %w", err)
	}

	ciphertext, err := encrypt(plaintext, e.deriveKey(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	content, err := json.MarshalIndent(keyFile{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal file data: %w", err)
	}

	tempFile := e.filepath + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tempFile, e.filepath)
}

func (e *EncryptedFileStore) deriveKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// getPassphrase reads the passphrase from the environment or from a
// generated file in the config directory
func getPassphrase() (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}

	passphraseFile := filepath.Join(configDir, ".passphrase")
	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}

	return passphrase, nil
}

// encrypt seals plaintext with AES-GCM, prefixing the nonce
func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens a nonce-prefixed AES-GCM ciphertext
func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
