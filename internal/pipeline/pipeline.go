package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/inboxsense/internal/analysis"
	"github.com/teemow/inboxsense/internal/apperr"
	"github.com/teemow/inboxsense/internal/credential"
	"github.com/teemow/inboxsense/internal/gmail"
	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
)

// DefaultStepTimeout bounds each pipeline step.
const DefaultStepTimeout = 30 * time.Second

// Sources recorded in audit entries.
const (
	SourceRequest = "request"
	SourceGmail   = "gmail"
)

// Outcome messages.
const (
	MessageSuccess       = "Analysis successful"
	MessageNotAuthorized = "Not authorized. Connect a mailbox at /auth/google first."
	MessageNoUnreadMail  = "No unread mail in inbox."
	MessageRetrieveError = "Failed to retrieve email. Check server logs."
)

// Analyzer produces an analysis for one email. *analysis.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, subject, body string) (*analysis.Result, error)
	Provider() string
}

// Outcome is the result of one pipeline run. Email and Analysis are nil
// whenever OK is false; no partial results are reported.
type Outcome struct {
	OK       bool
	Message  string
	Email    *gmail.EmailMessage
	Analysis *analysis.Result
	Err      error

	// Step is instrumentation.StepComplete on success, otherwise the step that failed.
	Step string
}

// Config configures an Orchestrator.
type Config struct {
	Store     credential.Store
	Retriever gmail.Retriever
	Analyzer  Analyzer

	// Source labels mail retrieved by Run in audit entries (default: SourceGmail).
	Source string

	// StepTimeout bounds each step (default: DefaultStepTimeout).
	StepTimeout time.Duration

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Orchestrator sequences credential lookup, mail retrieval and analysis.
type Orchestrator struct {
	store       credential.Store
	retriever   gmail.Retriever
	analyzer    Analyzer
	source      string
	stepTimeout time.Duration
	metrics     *instrumentation.Metrics
	audit       *instrumentation.AuditLogger
	logger      *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	source := cfg.Source
	if source == "" {
		source = SourceGmail
	}
	timeout := cfg.StepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	return &Orchestrator{
		store:       cfg.Store,
		retriever:   cfg.Retriever,
		analyzer:    cfg.Analyzer,
		source:      source,
		stepTimeout: timeout,
		metrics:     cfg.Metrics,
		audit:       cfg.Audit,
		logger:      logging.WithService(logger, "pipeline"),
	}
}

// Run fetches the latest unread email for key and analyzes it. It stops at
// the first failing step; later steps are not invoked.
func (o *Orchestrator) Run(ctx context.Context, key string) Outcome {
	session := logging.Session(key).Value.String()
	run := instrumentation.NewPipelineRun(session, o.source)

	ctx, span := instrumentation.StartSpan(ctx, "pipeline.run",
		instrumentation.NewSpanAttributeBuilder().WithSession(session).Build()...)
	defer span.End()
	run.WithSpanContext(ctx)

	logger := o.logger.With(logging.Operation("pipeline.run"), logging.Session(key))

	if err := o.step(ctx, instrumentation.StepCredential, func(ctx context.Context) error {
		return o.checkCredential(ctx, key)
	}); err != nil {
		return o.fail(ctx, logger, span, run, instrumentation.StepCredential, err, MessageNotAuthorized)
	}

	var email *gmail.EmailMessage
	if err := o.step(ctx, instrumentation.StepRetrieve, func(ctx context.Context) error {
		if o.retriever == nil {
			return apperr.E("pipeline.retrieve", apperr.ErrMisconfigured, errors.New("no mail retriever configured"))
		}
		var err error
		email, err = o.retriever.FetchLatestUnread(ctx, key)
		return err
	}); err != nil {
		msg := MessageRetrieveError
		switch {
		case errors.Is(err, apperr.ErrNotAuthorized):
			msg = MessageNotAuthorized
		case errors.Is(err, gmail.ErrNoUnreadMail):
			msg = MessageNoUnreadMail
		}
		return o.fail(ctx, logger, span, run, instrumentation.StepRetrieve, err, msg)
	}
	run.MessageID = email.ID
	run.Subject = email.Subject
	run.SenderDomain = logging.ExtractDomain(email.From)

	outcome := o.analyze(ctx, logger, span, run, email.Subject, email.Body)
	if outcome.OK {
		outcome.Email = email
	}
	return outcome
}

// AnalyzeText analyzes a caller-supplied email without touching the mailbox.
func (o *Orchestrator) AnalyzeText(ctx context.Context, subject, body string) Outcome {
	run := instrumentation.NewPipelineRun("", SourceRequest)
	run.Subject = subject

	ctx, span := instrumentation.StartSpan(ctx, "pipeline.analyze_text")
	defer span.End()
	run.WithSpanContext(ctx)

	logger := o.logger.With(logging.Operation("pipeline.analyze_text"))
	return o.analyze(ctx, logger, span, run, subject, body)
}

func (o *Orchestrator) analyze(ctx context.Context, logger *slog.Logger, span trace.Span, run *instrumentation.PipelineRun, subject, body string) Outcome {
	if o.analyzer != nil {
		run.Provider = o.analyzer.Provider()
	}

	var res *analysis.Result
	if err := o.step(ctx, instrumentation.StepAnalyze, func(ctx context.Context) error {
		if o.analyzer == nil {
			return apperr.E("pipeline.analyze", apperr.ErrMisconfigured, errors.New("no analyzer configured"))
		}
		var err error
		res, err = o.analyzer.Analyze(ctx, subject, body)
		return err
	}); err != nil {
		return o.fail(ctx, logger, span, run, instrumentation.StepAnalyze, err, analysisFailedMessage(run.Provider))
	}

	run.CompleteSuccess(res.Classification, res.Sentiment)
	o.finish(ctx, run)
	instrumentation.SetSpanSuccess(span)
	logger.Info("pipeline completed",
		"classification", res.Classification,
		"sentiment", res.Sentiment,
		"duration", run.Duration,
	)
	return Outcome{
		OK:       true,
		Message:  MessageSuccess,
		Analysis: res,
		Step:     instrumentation.StepComplete,
	}
}

// step runs fn under the step timeout inside its own span.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	ctx, span := instrumentation.StartPipelineStepSpan(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		instrumentation.SetSpanError(span, err)
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

func (o *Orchestrator) checkCredential(ctx context.Context, key string) error {
	if o.store == nil {
		return apperr.E("pipeline.credential", apperr.ErrNotAuthorized, errors.New("no credential store configured"))
	}
	cred, err := o.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotAuthorized) {
			return err
		}
		return apperr.E("pipeline.credential", apperr.ErrNotAuthorized, err)
	}
	if cred.Empty() {
		return apperr.E("pipeline.credential", apperr.ErrNotAuthorized, errors.New("stored credential has no access token"))
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, span trace.Span, run *instrumentation.PipelineRun, step string, err error, msg string) Outcome {
	run.CompleteWithError(step, err)
	o.finish(ctx, run)
	instrumentation.SetSpanError(span, err)

	level := slog.LevelError
	if errors.Is(err, apperr.ErrNotAuthorized) || errors.Is(err, gmail.ErrNoUnreadMail) {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "pipeline stopped", "step", step, logging.Err(err))

	return Outcome{Message: msg, Err: err, Step: step}
}

func (o *Orchestrator) finish(ctx context.Context, run *instrumentation.PipelineRun) {
	o.metrics.RecordPipelineRun(ctx, run.Step())
	o.audit.LogPipelineRun(run)
}

func analysisFailedMessage(provider string) string {
	name := "the AI provider"
	switch provider {
	case analysis.ProviderGemini:
		name = "Gemini"
	case analysis.ProviderOpenAI:
		name = "OpenAI"
	}
	return fmt.Sprintf("Failed to get analysis from %s. Check server logs.", name)
}
