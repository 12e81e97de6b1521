package server

import (
	"context"
	"sync"

	"github.com/teemow/inboxsense/internal/credential"
	"github.com/teemow/inboxsense/internal/pipeline"
)

// Authorizer runs the OAuth consent flow. *auth.Flow implements it.
type Authorizer interface {
	Configured() bool
	ConsentURL(ctx context.Context, key string) (string, error)
	Exchange(ctx context.Context, code, state string) (credential.Credential, error)
}

// Pipeline runs email analysis. *pipeline.Orchestrator implements it.
type Pipeline interface {
	Run(ctx context.Context, key string) pipeline.Outcome
	AnalyzeText(ctx context.Context, subject, body string) pipeline.Outcome
}

// ServerContext holds the components the handlers use and tracks shutdown.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	auth     Authorizer
	pipeline Pipeline
	sessions *SessionManager

	// aiConfigured reports whether an AI model is available.
	aiConfigured bool

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a ServerContext. Its context is cancelled on Shutdown.
func NewServerContext(ctx context.Context, auth Authorizer, p Pipeline, sessions *SessionManager, aiConfigured bool) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		auth:         auth,
		pipeline:     p,
		sessions:     sessions,
		aiConfigured: aiConfigured,
	}
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Components reports which optional integrations are configured.
func (sc *ServerContext) Components() map[string]bool {
	return map[string]bool{
		"google_oauth": sc.auth != nil && sc.auth.Configured(),
		"ai_model":     sc.aiConfigured,
	}
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and stops the session manager.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	if sc.sessions != nil {
		sc.sessions.Stop()
	}
	return nil
}
