package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// PipelineRun captures one pass through credential lookup, retrieval and
// analysis for the audit log.
//
// # Privacy Considerations
//
// Subject may contain personal data and is only logged when
// AuditLoggingConfig.IncludeSubjects is set. Session is expected to be hashed
// by the caller.
type PipelineRun struct {
	Session string
	Source  string // "gmail", "placeholder" or "request"

	MessageID    string
	SenderDomain string
	Subject      string

	Provider       string
	Classification string
	Sentiment      string

	// FailedStep is empty on success.
	FailedStep string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewPipelineRun starts timing a run.
func NewPipelineRun(session, source string) *PipelineRun {
	return &PipelineRun{
		Session:   session,
		Source:    source,
		StartTime: time.Now(),
	}
}

// WithSpanContext copies the trace context of the span in ctx.
func (r *PipelineRun) WithSpanContext(ctx context.Context) *PipelineRun {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.TraceID = span.SpanContext().TraceID().String()
		r.SpanID = span.SpanContext().SpanID().String()
	}
	return r
}

// CompleteSuccess marks the run as successful with the returned labels.
func (r *PipelineRun) CompleteSuccess(classification, sentiment string) *PipelineRun {
	r.Duration = time.Since(r.StartTime)
	r.Success = true
	r.Classification = classification
	r.Sentiment = sentiment
	return r
}

// CompleteWithError marks the run as failed at step.
func (r *PipelineRun) CompleteWithError(step string, err error) *PipelineRun {
	r.Duration = time.Since(r.StartTime)
	r.Success = false
	r.FailedStep = step
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Step returns StepComplete for successful runs and the failed step otherwise.
func (r *PipelineRun) Step() string {
	if r.Success {
		return StepComplete
	}
	return r.FailedStep
}

// LogAttrs returns the slog attributes for the run. Empty optional fields are omitted.
func (r *PipelineRun) LogAttrs(includeSubject bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("session", r.Session),
		slog.String("source", r.Source),
		slog.Duration("duration", r.Duration),
		slog.Bool("success", r.Success),
	}

	optional := []struct{ key, val string }{
		{"message_id", r.MessageID},
		{"sender_domain", r.SenderDomain},
		{"provider", r.Provider},
		{"classification", r.Classification},
		{"sentiment", r.Sentiment},
		{"failed_step", r.FailedStep},
		{"trace_id", r.TraceID},
		{"span_id", r.SpanID},
		{"error", r.Error},
	}
	if includeSubject {
		optional = append(optional, struct{ key, val string }{"subject", r.Subject})
	}
	for _, o := range optional {
		if o.val != "" {
			attrs = append(attrs, slog.String(o.key, o.val))
		}
	}
	return attrs
}

// AuditLogger writes one structured entry per pipeline run.
type AuditLogger struct {
	logger          *slog.Logger
	enabled         bool
	includeSubjects bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:          logger,
		enabled:         config.Enabled,
		includeSubjects: config.IncludeSubjects,
	}
}

// LogPipelineRun logs run at info level on success and warn level on failure.
// A nil receiver is a no-op.
func (al *AuditLogger) LogPipelineRun(r *PipelineRun) {
	if al == nil || !al.enabled || r == nil {
		return
	}

	attrs := r.LogAttrs(al.includeSubjects)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if r.Success {
		al.logger.Info("pipeline_run", args...)
	} else {
		al.logger.Warn("pipeline_run_failed", args...)
	}
}
