package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/inboxsense/internal/apperr"
	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 30 * time.Second

const opAnalyze = "analysis.analyze"

// Options configures an Analyzer.
type Options struct {
	// StrictLabels rejects labels outside Classifications and Sentiments.
	StrictLabels bool

	// Timeout bounds each model call (default: DefaultTimeout).
	Timeout time.Duration

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Analyzer classifies emails and determines their sentiment with a Model.
type Analyzer struct {
	model   Model
	strict  bool
	timeout time.Duration
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer. A nil model is accepted; Analyze then
// fails with apperr.ErrMisconfigured.
func NewAnalyzer(model Model, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Analyzer{
		model:   model,
		strict:  opts.StrictLabels,
		timeout: timeout,
		metrics: opts.Metrics,
		logger:  logging.WithService(logger, "analysis"),
	}
}

// Configured reports whether a model is available.
func (a *Analyzer) Configured() bool {
	return a.model != nil
}

// Provider returns the configured provider name, or "" without a model.
func (a *Analyzer) Provider() string {
	if a.model == nil {
		return ""
	}
	return a.model.Provider()
}

// Analyze asks the model to classify the email and returns its answer.
// Failures are reported as a nil result and an error wrapping one of
// apperr.ErrMisconfigured, apperr.ErrTransport, apperr.ErrMalformedResponse,
// apperr.ErrIncompleteResponse or, in strict mode, ErrUnknownLabel.
func (a *Analyzer) Analyze(ctx context.Context, subject, body string) (*Result, error) {
	if a.model == nil {
		err := apperr.E(opAnalyze, apperr.ErrMisconfigured, errors.New("no AI model configured"))
		a.logger.Error("cannot analyze email", logging.Operation(opAnalyze), logging.Err(err))
		return nil, err
	}

	provider, name := a.model.Provider(), a.model.Name()
	logger := a.logger.With(logging.Operation(opAnalyze), logging.Provider(provider), "model", name)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, span := instrumentation.StartAnalysisSpan(ctx, provider, name)
	defer span.End()

	start := time.Now()
	text, err := a.model.Generate(ctx, BuildPrompt(subject, body))
	if err != nil {
		result := instrumentation.AnalysisResultTransport
		if breakerOpen(err) {
			result = instrumentation.AnalysisResultUnavailable
		}
		err = apperr.E(opAnalyze, apperr.ErrTransport, err)
		a.metrics.RecordAnalysis(ctx, provider, name, result, time.Since(start))
		instrumentation.SetSpanError(span, err)
		logger.Error("model call failed", logging.Err(err), "duration", time.Since(start))
		return nil, err
	}
	logger.Debug("model responded", "response", logging.Truncate(text, logging.DefaultTruncateLength))

	res, err := Parse(text)
	if err == nil && a.strict {
		err = CheckLabels(res)
	}
	if err != nil {
		a.metrics.RecordAnalysis(ctx, provider, name, resultLabel(err), time.Since(start))
		instrumentation.SetSpanError(span, err)
		logger.Error("model response rejected",
			logging.Err(err),
			"raw", logging.Truncate(text, logging.DefaultTruncateLength),
			"cleaned", logging.Truncate(Normalize(text), logging.DefaultTruncateLength),
		)
		return nil, fmt.Errorf("%s: %w", opAnalyze, err)
	}

	a.metrics.RecordAnalysis(ctx, provider, name, instrumentation.AnalysisResultSuccess, time.Since(start))
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithAnalysis(res.Classification, res.Sentiment).Build()...)
	instrumentation.SetSpanSuccess(span)
	logger.Info("email analyzed",
		"classification", res.Classification,
		"sentiment", res.Sentiment,
		"duration", time.Since(start),
	)
	return res, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, apperr.ErrIncompleteResponse):
		return instrumentation.AnalysisResultIncomplete
	case errors.Is(err, ErrUnknownLabel):
		return instrumentation.AnalysisResultUnknown
	default:
		return instrumentation.AnalysisResultMalformed
	}
}
