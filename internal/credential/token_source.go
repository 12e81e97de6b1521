package credential

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// TokenSource returns a token source for the credential stored under key.
// Tokens are refreshed through conf when they expire and every refreshed
// token is written back to store, so later calls see the newest credential.
func TokenSource(ctx context.Context, store Store, key string, conf *oauth2.Config) (oauth2.TokenSource, error) {
	cred, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		ctx:    ctx,
		store:  store,
		key:    key,
		base:   conf.TokenSource(ctx, cred.Token()),
		issued: cred.AccessToken,
	}, nil
}

type persistingTokenSource struct {
	ctx   context.Context
	store Store
	key   string
	base  oauth2.TokenSource

	mu     sync.Mutex
	issued string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken != s.issued {
		if _, err := s.store.Set(s.ctx, s.key, FromToken(tok)); err != nil {
			return nil, err
		}
		s.issued = tok.AccessToken
	}
	return tok, nil
}
