// Package auth implements the Google OAuth2 authorization-code flow.
//
// ConsentURL issues a one-shot anti-forgery state bound to a session key and
// returns the consent screen URL. Exchange redeems the code delivered to the
// redirect URI, checks the state and stores the credential for that session.
// Refresh and TokenSource keep the stored access token current.
//
// Network calls run under a per-call timeout and are never retried.
package auth
