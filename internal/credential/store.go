package credential

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/inboxsense/internal/apperr"
	"github.com/teemow/inboxsense/internal/logging"
)

// DefaultKey is the identity used when a caller has no session of its own.
const DefaultKey = "default"

// ErrNotFound is returned by Get when no credential is stored for a key.
var ErrNotFound = fmt.Errorf("%w: no credential stored", apperr.ErrNotAuthorized)

// Store holds credentials keyed by session identity.
type Store interface {
	// Get returns the credential for key or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (Credential, error)

	// Set stores cred for key and returns the credential now held. A
	// credential without a refresh token keeps the one already stored.
	Set(ctx context.Context, key string, cred Credential) (Credential, error)

	// Delete removes the credential for key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a process-local Store. Contents are lost on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	creds  map[string]Credential
	logger *slog.Logger
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		creds:  make(map[string]Credential),
		logger: logger,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[key]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, cred Credential) (Credential, error) {
	if key == "" {
		return Credential{}, fmt.Errorf("credential key cannot be empty")
	}
	if cred.Empty() {
		return Credential{}, fmt.Errorf("credential has no access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := merge(s.creds[key], cred)
	s.creds[key] = stored

	s.logger.Debug("stored credential",
		logging.Session(key),
		"access_token", logging.SanitizeToken(stored.AccessToken),
		"has_refresh_token", stored.HasRefreshToken(),
		"expiry", stored.Expiry,
	)
	return stored, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, key)
	return nil
}

// Len returns the number of stored credentials.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
