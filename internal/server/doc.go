// Package server exposes the analysis pipeline over HTTP.
//
// # Routes
//
//   - GET  /                 liveness text
//   - GET  /auth/google      redirect to Google's consent screen
//   - GET  /oauth2callback   redeem the authorization code
//   - POST /analyze-test     analyze a built-in sample email
//   - POST /analyze          analyze a {subject, body} JSON payload
//   - POST /analyze-latest   analyze the newest unread inbox message
//   - GET  /healthz, /readyz, /healthz/detailed
//
// API responses share one JSON envelope with message, analysis, email, error
// and code fields. Each browser is mapped to a credential key by
// SessionManager; without per-session mode every request shares
// credential.DefaultKey.
//
// Prometheus metrics are served by MetricsServer on a separate port.
package server
