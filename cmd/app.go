package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/inboxsense/internal/analysis"
	"github.com/teemow/inboxsense/internal/auth"
	"github.com/teemow/inboxsense/internal/credential"
	"github.com/teemow/inboxsense/internal/gmail"
	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
	"github.com/teemow/inboxsense/internal/pipeline"
)

// app holds the wired components. Components whose credentials are missing
// are still built and fail with a configuration error when used.
type app struct {
	cfg      Config
	logger   *slog.Logger
	instr    *instrumentation.Provider
	store    credential.Store
	flow     *auth.Flow
	analyzer *analysis.Analyzer
	pipeline *pipeline.Orchestrator
}

// newApp wires the components. instr may be nil for one-shot commands.
func newApp(ctx context.Context, cfg Config, instr *instrumentation.Provider, logger *slog.Logger) *app {
	var (
		metrics *instrumentation.Metrics
		audit   *instrumentation.AuditLogger
	)
	if instr != nil {
		metrics = instr.Metrics()
		audit = instr.Audit()
	}

	store := credential.NewMemoryStore(logger)
	flow := auth.New(auth.Config{
		Client:  cfg.Google,
		Store:   store,
		Metrics: metrics,
		Logger:  logger,
	})

	var retriever gmail.Retriever
	switch cfg.MailSource {
	case MailSourcePlaceholder:
		retriever = gmail.NewPlaceholderRetriever(flow, logger)
	default:
		retriever = gmail.NewClient(gmail.Config{
			Tokens:  flow,
			Metrics: metrics,
			Logger:  logger,
		})
	}

	model, err := newModel(ctx, cfg.AI, logger)
	if err != nil {
		// The analyzer reports the missing model on every call.
		logger.Debug("analysis model unavailable", logging.Err(err))
	}
	analyzer := analysis.NewAnalyzer(model, analysis.Options{
		StrictLabels: cfg.AI.StrictLabels,
		Metrics:      metrics,
		Logger:       logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		instr:    instr,
		store:    store,
		flow:     flow,
		analyzer: analyzer,
		pipeline: pipeline.New(pipeline.Config{
			Store:       store,
			Retriever:   retriever,
			Analyzer:    analyzer,
			Source:      cfg.MailSource,
			StepTimeout: cfg.StepTimeout,
			Metrics:     metrics,
			Audit:       audit,
			Logger:      logger,
		}),
	}
}

// newModel builds the configured provider behind a circuit breaker.
func newModel(ctx context.Context, cfg AIConfig, logger *slog.Logger) (analysis.Model, error) {
	var (
		model analysis.Model
		err   error
	)
	switch cfg.Provider {
	case analysis.ProviderOpenAI:
		model, err = analysis.NewOpenAIModel(analysis.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.OpenAIBaseURL,
		})
	case analysis.ProviderGemini:
		model, err = analysis.NewGeminiModel(ctx, analysis.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return analysis.WithBreaker(model, analysis.DefaultBreakerSettings(), logger), nil
}

// reportMissing logs one critical entry per unconfigured integration.
func (a *app) reportMissing() {
	if missing := a.cfg.Google.Missing(); len(missing) > 0 {
		a.logger.Error("CRITICAL: Google OAuth client is not configured; mailbox access is disabled",
			"missing", missing)
	}
	if !a.analyzer.Configured() {
		a.logger.Error("CRITICAL: AI model is not configured; analysis is disabled",
			logging.Provider(a.cfg.AI.Provider),
			"api_key_set", a.cfg.AI.APIKey() != "")
	}
}

// Close releases background resources.
func (a *app) Close() {
	a.flow.Close()
}
