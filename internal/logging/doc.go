// Package logging provides structured logging utilities for the inboxsense application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.fetch_latest_unread")
//	logger.Info("fetched message", logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Debug("stored credential",
//	    logging.Session(key),
//	    "access_token", logging.SanitizeToken(cred.AccessToken))
//
// # Security Considerations
//
//   - Session keys and sender addresses are hashed before logging
//   - Tokens are never logged directly
package logging
