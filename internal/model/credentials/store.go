package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zhouzirui/farm-assistant/backend/internal/repository/kv"
)

// Persisted keys, shared with the settings surface.
const (
	KeyAPIKey = "apiKey"
	KeyModel  = "model"
)

// Source hands out a snapshot of the current credentials.
type Source interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Store exposes credential persistence to the settings surface.
type Store interface {
	Source
	Save(ctx context.Context, creds Credentials) error
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore returns a MemoryStore preloaded with creds.
func NewMemoryStore(creds Credentials) *MemoryStore {
	return &MemoryStore{creds: creds}
}

// Credentials returns the stored value.
func (s *MemoryStore) Credentials(_ context.Context) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, nil
}

// Save replaces the stored value.
func (s *MemoryStore) Save(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

// KVStore reads and writes credentials through the persisted key/value table.
type KVStore struct {
	kv *kv.Store
}

// NewKVStore wraps an opened key/value store.
func NewKVStore(store *kv.Store) *KVStore {
	return &KVStore{kv: store}
}

// Credentials loads both keys; a key that was never written is left empty.
func (s *KVStore) Credentials(ctx context.Context) (Credentials, error) {
	apiKey, err := s.lookup(ctx, KeyAPIKey)
	if err != nil {
		return Credentials{}, err
	}
	model, err := s.lookup(ctx, KeyModel)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{APIKey: apiKey, Model: model}, nil
}

// Save writes both keys. Empty values delete the key so the defaults apply again.
func (s *KVStore) Save(ctx context.Context, creds Credentials) error {
	if err := s.put(ctx, KeyAPIKey, creds.APIKey); err != nil {
		return err
	}
	return s.put(ctx, KeyModel, creds.Model)
}

func (s *KVStore) lookup(ctx context.Context, key string) (string, error) {
	value, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) put(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
		return nil
	}
	if err := s.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
