package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxsense/internal/credential"
	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
)

const (
	// SessionCookieName carries the session key in the browser.
	SessionCookieName = "inboxsense_session"

	// DefaultSessionTimeout is how long an idle session keeps its credential.
	DefaultSessionTimeout = 24 * time.Hour

	sessionCleanupInterval = 10 * time.Minute
)

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// PerSession gives every browser its own credential slot. When false all
	// requests share credential.DefaultKey.
	PerSession bool

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool

	// Timeout defaults to DefaultSessionTimeout.
	Timeout time.Duration

	// Store is cleared of a session's credential when the session expires.
	Store credential.Store

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// SessionManager maps requests to credential keys.
type SessionManager struct {
	perSession bool
	secure     bool
	timeout    time.Duration
	store      credential.Store
	metrics    *instrumentation.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a SessionManager and starts its cleanup
// goroutine. Call Stop to end it.
func NewSessionManager(cfg SessionConfig) *SessionManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	m := &SessionManager{
		perSession: cfg.PerSession,
		secure:     cfg.SecureCookies,
		timeout:    timeout,
		store:      cfg.Store,
		metrics:    cfg.Metrics,
		logger:     logging.WithService(logger, "sessions"),
		sessions:   make(map[string]time.Time),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go m.cleanup(sessionCleanupInterval)
	return m
}

// Resolve returns the credential key for r. Requests without the cookie of a
// session started by Ensure use credential.DefaultKey.
func (m *SessionManager) Resolve(r *http.Request) string {
	if !m.perSession {
		return credential.DefaultKey
	}
	key, ok := sessionFromCookie(r)
	if !ok || !m.refresh(key) {
		return credential.DefaultKey
	}
	return key
}

// Ensure returns the credential key for r, starting a new session and
// setting its cookie on w when r carries none or an unknown one.
func (m *SessionManager) Ensure(w http.ResponseWriter, r *http.Request) string {
	if !m.perSession {
		return credential.DefaultKey
	}
	if key, ok := sessionFromCookie(r); ok && m.refresh(key) {
		return key
	}

	key := uuid.NewString()
	m.touch(r.Context(), key)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    key,
		Path:     "/",
		MaxAge:   int(m.timeout.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.Info("session started", logging.Session(key))
	return key
}

// Len returns the number of tracked sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// refresh marks a tracked session as used. Unknown keys are ignored.
func (m *SessionManager) refresh(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[key]; !ok {
		return false
	}
	m.sessions[key] = m.now()
	return true
}

func (m *SessionManager) touch(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[key]; !ok {
		m.metrics.IncrementActiveSessions(ctx)
	}
	m.sessions[key] = m.now()
}

func (m *SessionManager) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired(context.Background())
		case <-m.stop:
			return
		}
	}
}

// cleanupExpired forgets idle sessions and deletes their credentials.
func (m *SessionManager) cleanupExpired(ctx context.Context) int {
	m.mu.Lock()
	now := m.now()
	var expired []string
	for key, last := range m.sessions {
		if now.Sub(last) > m.timeout {
			delete(m.sessions, key)
			expired = append(expired, key)
		}
	}
	m.mu.Unlock()

	for _, key := range expired {
		m.metrics.DecrementActiveSessions(ctx)
		if m.store == nil {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			m.logger.Warn("failed to delete credential of expired session", logging.Session(key), logging.Err(err))
		}
	}
	if len(expired) > 0 {
		m.logger.Info("cleaned up expired sessions", "count", len(expired))
	}
	return len(expired)
}

func sessionFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
