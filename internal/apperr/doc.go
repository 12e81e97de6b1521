// Package apperr defines the error taxonomy shared by the credential, auth,
// gmail, analysis and pipeline packages: configuration, authorization,
// transport and response-format failures.
package apperr
