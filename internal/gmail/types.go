package gmail

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxsense/internal/apperr"
)

// ErrNoUnreadMail is returned when the inbox holds no unread message.
var ErrNoUnreadMail = errors.New("no unread mail in inbox")

// EmailMessage is the text of one retrieved message. It is produced fresh
// for every retrieval and never cached.
type EmailMessage struct {
	ID         string     `json:"id,omitempty"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	From       string     `json:"from,omitempty"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}

// Retriever fetches mail on behalf of a session.
type Retriever interface {
	// FetchLatestUnread returns the most recently received unread inbox
	// message. It fails with an error wrapping apperr.ErrNotAuthorized when
	// no credential is available for key.
	FetchLatestUnread(ctx context.Context, key string) (*EmailMessage, error)
}

// TokenSourcer yields an OAuth2 token source for a session. auth.Flow
// implements it.
type TokenSourcer interface {
	TokenSource(ctx context.Context, key string) (oauth2.TokenSource, error)
}

// requireTokens resolves the token source for key, mapping every failure
// onto apperr.ErrNotAuthorized.
func requireTokens(ctx context.Context, op string, tokens TokenSourcer, key string) (oauth2.TokenSource, error) {
	if tokens == nil {
		return nil, apperr.E(op, apperr.ErrNotAuthorized, errors.New("no token source configured"))
	}
	ts, err := tokens.TokenSource(ctx, key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotAuthorized) {
			return nil, err
		}
		return nil, apperr.E(op, apperr.ErrNotAuthorized, err)
	}
	return ts, nil
}
