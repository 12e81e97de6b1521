package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/inboxsense/internal/apperr"
)

// ClientConfig identifies this application to Google's OAuth2 endpoints.
// It is passed by value into every component that talks to Google.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to DefaultOAuthScopes when empty.
	Scopes []string

	// Endpoint overrides google.Endpoint. The zero value uses Google.
	Endpoint oauth2.Endpoint
}

// Missing returns the names of the required settings that are empty.
func (c ClientConfig) Missing() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.RedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URI")
	}
	return missing
}

// Configured reports whether all required settings are present.
func (c ClientConfig) Configured() bool {
	return len(c.Missing()) == 0
}

// Validate returns an error wrapping apperr.ErrMisconfigured when a required
// setting is absent.
func (c ClientConfig) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return apperr.E("google.config", apperr.ErrMisconfigured,
			fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

// OAuthConfig returns the oauth2 configuration for the Gmail read-only flow.
func (c ClientConfig) OAuthConfig() *oauth2.Config {
	endpoint := c.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       append([]string(nil), scopes...),
	}
}

// WithHTTPClient makes the oauth2 package use hc for token endpoint calls and
// as the base transport of clients it builds. A nil hc leaves ctx unchanged.
func WithHTTPClient(ctx context.Context, hc *http.Client) context.Context {
	if hc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}
