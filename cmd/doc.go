// Package cmd implements the command-line interface for inboxsense.
//
// This package provides the following commands:
//   - serve: Start the HTTP server (default when no subcommand is given)
//   - consent: Authorize a mailbox from the terminal and optionally analyze it
//   - analyze: Classify a subject and body given on the command line
//   - version: Display version information
//
// Every setting can be given as a flag or as the matching environment
// variable (GOOGLE_CLIENT_ID for --google-client-id). .env.local and .env in
// the working directory are loaded first.
package cmd
