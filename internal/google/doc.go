// Package google holds the OAuth2 client configuration for Google APIs.
//
// A ClientConfig is built once from configuration and passed by value to the
// auth flow and the Gmail retriever.
package google
