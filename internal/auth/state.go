package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultStateTTL bounds how long a consent URL stays redeemable.
const DefaultStateTTL = 10 * time.Minute

var (
	// ErrUnknownState is returned for a state that was never issued or was already consumed.
	ErrUnknownState = errors.New("unknown authorization state")

	// ErrStateExpired is returned for a state older than the store's TTL.
	ErrStateExpired = errors.New("authorization state expired")
)

type pendingState struct {
	key       string
	expiresAt time.Time
}

// StateStore tracks the anti-forgery state parameters handed out with
// consent URLs and the session key each one was issued for.
type StateStore struct {
	mu     sync.Mutex
	states map[string]pendingState
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStateStore creates a StateStore and starts its cleanup goroutine.
// Call Close to stop it.
func NewStateStore(ttl time.Duration, logger *slog.Logger) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &StateStore{
		states: make(map[string]pendingState),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		stop:   make(chan struct{}),
	}
	go s.cleanup(time.Minute)
	return s
}

// Issue creates a new state bound to key.
func (s *StateStore) Issue(key string) (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state] = pendingState{key: key, expiresAt: s.now().Add(s.ttl)}
	return state, nil
}

// Consume returns the key state was issued for and forgets the state.
// A state can be consumed once.
func (s *StateStore) Consume(state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.states[state]
	if !ok {
		return "", ErrUnknownState
	}
	delete(s.states, state)

	if s.now().After(pending.expiresAt) {
		return "", ErrStateExpired
	}
	return pending.key, nil
}

// Len returns the number of outstanding states.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *StateStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *StateStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *StateStore) cleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deleted := 0
	for state, pending := range s.states {
		if now.After(pending.expiresAt) {
			delete(s.states, state)
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Debug("cleaned up expired authorization states", "states_deleted", deleted)
	}
	return deleted
}

// GenerateState returns 32 random bytes encoded as unpadded base64url.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
