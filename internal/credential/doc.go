// Package credential stores OAuth2 credentials in memory, keyed by session
// identity.
//
// A credential that arrives with a refresh token replaces the slot entirely.
// One without a refresh token only updates the access token and expiry, so a
// refresh token obtained earlier remains usable.
package credential
