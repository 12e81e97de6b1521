// Package pipeline runs the email analysis flow for one session: check for a
// stored credential, fetch the latest unread email, analyze it.
//
// Each step runs under its own timeout and span. The first failure ends the
// run and is reported in the Outcome together with a user-facing message.
package pipeline
