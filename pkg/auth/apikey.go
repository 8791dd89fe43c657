package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// KeyPrefix starts every generated API key.
const KeyPrefix = "sg_"

var (
	ErrKeyInvalid = errors.New("invalid API key")
	ErrKeyExpired = errors.New("API key has expired")
)

// APIKey describes the holder of a key. Key is set only on the value
// returned by Generate; the manager itself stores hashes.
type APIKey struct {
	Key       string     `json:"key,omitempty"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// APIKeyManager holds the API keys accepted by the render API.
type APIKeyManager struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]APIKey
}

func NewAPIKeyManager() *APIKeyManager {
	return &APIKeyManager{keys: make(map[[sha256.Size]byte]APIKey)}
}

// Generate creates a random key for userID and registers it.
func (m *APIKeyManager) Generate(userID, name, role string, expiresAt *time.Time) (*APIKey, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}
	key := KeyPrefix + base64.RawURLEncoding.EncodeToString(secret)

	k, err := m.Add(key, userID, name, role, expiresAt)
	if err != nil {
		return nil, err
	}
	k.Key = key
	return k, nil
}

// Add registers a key issued elsewhere, such as one from configuration.
// An empty role means RoleRenderer.
func (m *APIKeyManager) Add(key, userID, name, role string, expiresAt *time.Time) (*APIKey, error) {
	if key == "" || userID == "" {
		return nil, errors.New("key and user ID are required")
	}
	if role == "" {
		role = RoleRenderer
	}
	k := APIKey{
		UserID:    userID,
		Name:      name,
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	h := sha256.Sum256([]byte(key))
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.keys[h]; dup {
		return nil, errors.New("API key already registered")
	}
	m.keys[h] = k
	return &k, nil
}

// Verify returns the holder of key.
func (m *APIKeyManager) Verify(key string) (*APIKey, error) {
	m.mu.RLock()
	k, ok := m.keys[sha256.Sum256([]byte(key))]
	m.mu.RUnlock()

	switch {
	case !ok:
		return nil, ErrKeyInvalid
	case k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt):
		return nil, ErrKeyExpired
	}
	return &k, nil
}

// Count returns the number of registered keys.
func (m *APIKeyManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// ParseKeySpec reads a configured key of the form "user:role:key" or
// "user:key". The key itself may contain colons only in the first form.
func ParseKeySpec(spec string) (userID, role, key string, err error) {
	parts := strings.SplitN(spec, ":", 3)
	switch len(parts) {
	case 2:
		userID, key = parts[0], parts[1]
	case 3:
		userID, role, key = parts[0], parts[1], parts[2]
	default:
		return "", "", "", fmt.Errorf("API key %q: expected user:key or user:role:key", redact(spec))
	}
	if userID == "" || key == "" {
		return "", "", "", fmt.Errorf("API key %q: empty user or key", redact(spec))
	}
	return userID, role, key, nil
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
