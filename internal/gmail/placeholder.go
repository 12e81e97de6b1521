package gmail

import (
	"context"
	"log/slog"

	"github.com/teemow/inboxsense/internal/logging"
)

const (
	PlaceholderSubject = "Placeholder Subject"
	PlaceholderBody    = "Placeholder Body - Fetching not implemented yet."
)

// PlaceholderRetriever returns a fixed message once a session is authorized.
// It never calls the Gmail API.
type PlaceholderRetriever struct {
	tokens TokenSourcer
	logger *slog.Logger
}

// NewPlaceholderRetriever creates a PlaceholderRetriever.
func NewPlaceholderRetriever(tokens TokenSourcer, logger *slog.Logger) *PlaceholderRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaceholderRetriever{tokens: tokens, logger: logging.WithService(logger, "gmail")}
}

// FetchLatestUnread implements Retriever.
func (p *PlaceholderRetriever) FetchLatestUnread(ctx context.Context, key string) (*EmailMessage, error) {
	if _, err := requireTokens(ctx, opFetchLatest, p.tokens, key); err != nil {
		p.logger.Warn("cannot fetch mail", logging.Operation(opFetchLatest), logging.Session(key), logging.Err(err))
		return nil, err
	}

	p.logger.Info("returning placeholder email", logging.Operation(opFetchLatest), logging.Session(key))
	return &EmailMessage{Subject: PlaceholderSubject, Body: PlaceholderBody}, nil
}
