package credential

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenRefreshThreshold is how long before expiry an access token is
// treated as expired.
const TokenRefreshThreshold = 5 * time.Minute

// Credential is the OAuth2 token set held for one identity.
type Credential struct {
	AccessToken string `json:"access_token"`

	// RefreshToken is empty when the provider did not issue one.
	RefreshToken string `json:"refresh_token,omitempty"`

	TokenType string `json:"token_type,omitempty"`

	// Expiry is zero when the provider did not report a lifetime.
	Expiry time.Time `json:"expiry,omitempty"`
}

// FromToken converts an oauth2 token. A nil token yields the zero Credential.
func FromToken(t *oauth2.Token) Credential {
	if t == nil {
		return Credential{}
	}
	return Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// Token converts c back into an oauth2 token.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// HasRefreshToken reports whether c can be refreshed without user interaction.
func (c Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// Empty reports whether c carries no access token.
func (c Credential) Empty() bool {
	return c.AccessToken == ""
}

// ExpiresWithin reports whether c has expired or will expire within threshold
// of now. Credentials without an expiry never expire.
func (c Credential) ExpiresWithin(now time.Time, threshold time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return now.Add(threshold).After(c.Expiry)
}

// merge applies next on top of prev. A refresh token in next replaces the
// whole slot; without one, prev's refresh token survives.
func merge(prev, next Credential) Credential {
	if next.HasRefreshToken() {
		return next
	}
	next.RefreshToken = prev.RefreshToken
	return next
}
