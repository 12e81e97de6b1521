package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/inboxsense/internal/apperr"
	"github.com/teemow/inboxsense/internal/google"
	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
)

const (
	// UnreadQuery selects unread messages in the inbox.
	UnreadQuery = "is:unread in:inbox"

	// DefaultMaxCandidates is how many unread message IDs are considered
	// when looking for the newest one.
	DefaultMaxCandidates int64 = 10

	// DefaultTimeout bounds each Gmail API call.
	DefaultTimeout = 15 * time.Second

	opFetchLatest = "gmail.fetch_latest_unread"
	me            = "me"
)

// Config configures a Client.
type Config struct {
	Tokens TokenSourcer

	// HTTPClient is the base transport below the OAuth2 layer
	// (default: http.DefaultClient).
	HTTPClient *http.Client

	// Endpoint overrides the Gmail API base URL.
	Endpoint string

	MaxCandidates int64
	Timeout       time.Duration

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Client retrieves mail through the Gmail API.
type Client struct {
	tokens        TokenSourcer
	httpClient    *http.Client
	endpoint      string
	maxCandidates int64
	timeout       time.Duration
	metrics       *instrumentation.Metrics
	logger        *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		tokens:        cfg.Tokens,
		httpClient:    cfg.HTTPClient,
		endpoint:      cfg.Endpoint,
		maxCandidates: maxCandidates,
		timeout:       timeout,
		metrics:       cfg.Metrics,
		logger:        logging.WithService(logger, "gmail"),
	}
}

// FetchLatestUnread implements Retriever. It lists one page of unread inbox
// messages, picks the one with the highest internal date and returns its
// subject and plain-text body.
func (c *Client) FetchLatestUnread(ctx context.Context, key string) (*EmailMessage, error) {
	logger := c.logger.With(logging.Operation(opFetchLatest), logging.Session(key))

	ts, err := requireTokens(ctx, opFetchLatest, c.tokens, key)
	if err != nil {
		logger.Warn("cannot fetch mail", logging.Err(err))
		return nil, err
	}

	svc, err := c.service(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opFetchLatest, err)
	}

	ids, err := c.listUnread(ctx, svc)
	if err != nil {
		logger.Error("failed to list unread mail", logging.Err(err))
		return nil, err
	}
	if len(ids) == 0 {
		logger.Info("inbox has no unread mail")
		return nil, ErrNoUnreadMail
	}

	latest, err := c.newest(ctx, svc, ids)
	if err != nil {
		logger.Error("failed to read message metadata", logging.Err(err))
		return nil, err
	}

	msg, err := c.get(ctx, svc, latest, "full")
	if err != nil {
		logger.Error("failed to fetch message", "message_id", latest, logging.Err(err))
		return nil, err
	}

	email, err := toEmailMessage(msg)
	if err != nil {
		err = apperr.E(opFetchLatest, apperr.ErrTransport, err)
		logger.Error("failed to decode message", "message_id", latest, logging.Err(err))
		return nil, err
	}

	logger.Info("fetched latest unread email",
		"message_id", email.ID,
		logging.Domain(email.From),
		"candidates", len(ids),
		"body_length", len(email.Body),
	)
	return email, nil
}

func (c *Client) service(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	hc := oauth2.NewClient(google.WithHTTPClient(ctx, c.httpClient), ts)
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

func (c *Client) listUnread(ctx context.Context, svc *gmail.Service) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationList)
	defer span.End()

	start := time.Now()
	res, err := svc.Users.Messages.List(me).Q(UnreadQuery).MaxResults(c.maxCandidates).Context(ctx).Do()
	c.record(ctx, instrumentation.OperationList, err, time.Since(start))
	if err != nil {
		err = classifyError("gmail.list", err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

// newest returns the ID with the highest internal date. Ties keep the
// earlier list position.
func (c *Client) newest(ctx context.Context, svc *gmail.Service, ids []string) (string, error) {
	if len(ids) == 1 {
		return ids[0], nil
	}

	var (
		bestID   string
		bestDate int64 = -1
	)
	for _, id := range ids {
		msg, err := c.get(ctx, svc, id, "metadata")
		if err != nil {
			return "", err
		}
		if msg.InternalDate > bestDate {
			bestID, bestDate = id, msg.InternalDate
		}
	}
	return bestID, nil
}

func (c *Client) get(ctx context.Context, svc *gmail.Service, id, format string) (*gmail.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attrs := instrumentation.NewSpanAttributeBuilder().WithMessageID(id).Build()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet, attrs...)
	defer span.End()

	start := time.Now()
	msg, err := svc.Users.Messages.Get(me, id).Format(format).Context(ctx).Do()
	c.record(ctx, instrumentation.OperationGet, err, time.Since(start))
	if err != nil {
		err = classifyError("gmail.get", err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return msg, nil
}

func (c *Client) record(ctx context.Context, operation string, err error, d time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, d)
}

func toEmailMessage(msg *gmail.Message) (*EmailMessage, error) {
	body, err := extractBody(msg)
	if err != nil {
		return nil, err
	}
	email := &EmailMessage{
		ID:      msg.Id,
		Subject: header(msg.Payload, "Subject"),
		From:    header(msg.Payload, "From"),
		Body:    body,
	}
	if msg.InternalDate > 0 {
		received := time.UnixMilli(msg.InternalDate).UTC()
		email.ReceivedAt = &received
	}
	return email, nil
}

// classifyError maps a Gmail API failure onto the error taxonomy. Rejected
// credentials, including a refresh the token endpoint refused, are
// authorization errors.
func classifyError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return apperr.E(op, apperr.ErrAuthorization, err)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil &&
		rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
		return apperr.E(op, apperr.ErrAuthorization, err)
	}
	return apperr.E(op, apperr.ErrTransport, err)
}
