// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for inboxsense.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds by method, path, status
//   - active_sessions: browser sessions holding a session cookie
//
// Google:
//   - google_api_operations_total, google_api_operation_duration_seconds by service, operation, status
//   - oauth_auth_total: authorization code exchanges by result
//   - oauth_token_refresh_total: token refreshes by result
//
// Analysis:
//   - analysis_requests_total, analysis_duration_seconds by provider and result
//   - pipeline_runs_total by the step a run ended at
//
// # Tracing
//
// Spans are created for pipeline steps (pipeline.<step>), Google API calls
// (google.<service>.<operation>) and model calls (ai.<provider>.generate).
//
// # Configuration
//
// DefaultConfig reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER, TRACING_EXPORTER,
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE, OTEL_TRACES_SAMPLER_ARG,
// OTEL_SERVICE_NAME, METRICS_DETAILED_LABELS and AUDIT_LOGGING_* variables.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordAnalysis(ctx, "gemini", "gemini-2.5-flash", instrumentation.AnalysisResultSuccess, time.Since(start))
package instrumentation
