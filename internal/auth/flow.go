package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxsense/internal/apperr"
	"github.com/teemow/inboxsense/internal/credential"
	"github.com/teemow/inboxsense/internal/google"
	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
)

// DefaultTimeout bounds a single call to the token endpoint.
const DefaultTimeout = 15 * time.Second

const (
	opConsentURL  = "auth.consent_url"
	opExchange    = "auth.exchange"
	opRefresh     = "auth.refresh"
	opTokenSource = "auth.token_source"
)

// Config configures a Flow.
type Config struct {
	Client google.ClientConfig
	Store  credential.Store

	// States defaults to a new StateStore owned and closed by the Flow.
	States *StateStore

	// HTTPClient is used for token endpoint calls (default: http.DefaultClient).
	HTTPClient *http.Client

	// Timeout bounds each token endpoint call (default: DefaultTimeout).
	Timeout time.Duration

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Flow drives the OAuth2 authorization-code grant against Google and keeps
// the resulting credentials in a credential.Store.
type Flow struct {
	client     google.ClientConfig
	oauth      *oauth2.Config
	store      credential.Store
	states     *StateStore
	ownsStates bool
	httpClient *http.Client
	timeout    time.Duration
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Flow. An incomplete Client is accepted; operations that need
// it fail with apperr.ErrMisconfigured.
func New(cfg Config) *Flow {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = credential.NewMemoryStore(logger)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	f := &Flow{
		client:     cfg.Client,
		oauth:      cfg.Client.OAuthConfig(),
		store:      store,
		states:     cfg.States,
		httpClient: cfg.HTTPClient,
		timeout:    timeout,
		metrics:    cfg.Metrics,
		logger:     logging.WithService(logger, "auth"),
		now:        time.Now,
	}
	if f.states == nil {
		f.states = NewStateStore(DefaultStateTTL, logger)
		f.ownsStates = true
	}
	return f
}

// Configured reports whether the Google client settings are complete.
func (f *Flow) Configured() bool {
	return f.client.Configured()
}

// Store returns the credential store the flow writes to.
func (f *Flow) Store() credential.Store {
	return f.store
}

// ConsentURL returns the Google consent screen URL for key. The URL requests
// offline access and forces the consent prompt so a refresh token is issued.
// Successive calls differ only in their state parameter.
func (f *Flow) ConsentURL(_ context.Context, key string) (string, error) {
	if err := f.client.Validate(); err != nil {
		f.logger.Error("cannot build consent URL", logging.Operation(opConsentURL), logging.Err(err))
		return "", err
	}

	state, err := f.states.Issue(key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", opConsentURL, err)
	}

	return f.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange redeems the code delivered to the redirect URI together with the
// state issued by ConsentURL. On success the credential is stored for the
// session the state was issued to and returned. On failure the store is unchanged.
func (f *Flow) Exchange(ctx context.Context, code, state string) (credential.Credential, error) {
	if err := f.client.Validate(); err != nil {
		f.logger.Error("cannot exchange authorization code", logging.Operation(opExchange), logging.Err(err))
		return credential.Credential{}, err
	}

	key, err := f.states.Consume(state)
	if err != nil {
		f.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		err = apperr.E(opExchange, apperr.ErrAuthorization, err)
		f.logger.Warn("rejected authorization callback", logging.Operation(opExchange), logging.Err(err))
		return credential.Credential{}, err
	}

	return f.ExchangeCode(ctx, key, code)
}

// ExchangeCode redeems code for key without a state check. It serves
// out-of-band flows where the user pastes the code into the CLI.
func (f *Flow) ExchangeCode(ctx context.Context, key, code string) (credential.Credential, error) {
	logger := f.logger.With(logging.Operation(opExchange), logging.Session(key))

	if err := f.client.Validate(); err != nil {
		logger.Error("cannot exchange authorization code", logging.Err(err))
		return credential.Credential{}, err
	}
	if code == "" {
		f.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		err := apperr.E(opExchange, apperr.ErrAuthorization, errors.New("authorization code is empty"))
		logger.Warn("rejected authorization callback", logging.Err(err))
		return credential.Credential{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationExchange)
	defer span.End()

	start := time.Now()
	tok, err := f.oauth.Exchange(google.WithHTTPClient(ctx, f.httpClient), code)
	f.recordGoogle(ctx, instrumentation.OperationExchange, err, time.Since(start))
	if err != nil {
		err = classifyTokenError(opExchange, err)
		instrumentation.SetSpanError(span, err)
		f.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		logger.Error("authorization code exchange failed", logging.Err(err))
		return credential.Credential{}, err
	}

	stored, err := f.store.Set(ctx, key, credential.FromToken(tok))
	if err != nil {
		err = fmt.Errorf("%s: store credential: %w", opExchange, err)
		instrumentation.SetSpanError(span, err)
		f.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		logger.Error("failed to store credential", logging.Err(err))
		return credential.Credential{}, err
	}

	instrumentation.SetSpanSuccess(span)
	f.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	logger.Info("authorization code exchanged",
		"access_token", logging.SanitizeToken(stored.AccessToken),
		"has_refresh_token", stored.HasRefreshToken(),
	)
	return stored, nil
}

// Refresh renews the access token stored for key when it has expired or
// expires within credential.TokenRefreshThreshold. A fresh token is returned
// unchanged without contacting Google.
func (f *Flow) Refresh(ctx context.Context, key string) (credential.Credential, error) {
	logger := f.logger.With(logging.Operation(opRefresh), logging.Session(key))

	if err := f.client.Validate(); err != nil {
		logger.Error("cannot refresh token", logging.Err(err))
		return credential.Credential{}, err
	}

	cred, err := f.store.Get(ctx, key)
	if err != nil {
		return credential.Credential{}, apperr.E(opRefresh, apperr.ErrAuthorization, err)
	}
	if !cred.ExpiresWithin(f.now(), credential.TokenRefreshThreshold) {
		return cred, nil
	}
	if !cred.HasRefreshToken() {
		f.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
		err := apperr.E(opRefresh, apperr.ErrAuthorization, errors.New("access token expired and no refresh token is stored"))
		logger.Warn("token refresh impossible", logging.Err(err))
		return credential.Credential{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationRefresh)
	defer span.End()

	// An expiry in the past makes the oauth2 token source refresh
	// even when the token is still inside its own validity window.
	stale := cred.Token()
	stale.Expiry = time.Unix(1, 0)

	start := time.Now()
	tok, err := f.oauth.TokenSource(google.WithHTTPClient(ctx, f.httpClient), stale).Token()
	f.recordGoogle(ctx, instrumentation.OperationRefresh, err, time.Since(start))
	if err != nil {
		err = classifyTokenError(opRefresh, err)
		instrumentation.SetSpanError(span, err)
		f.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		logger.Error("token refresh failed", logging.Err(err))
		return credential.Credential{}, err
	}

	stored, err := f.store.Set(ctx, key, credential.FromToken(tok))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return credential.Credential{}, fmt.Errorf("%s: store credential: %w", opRefresh, err)
	}

	instrumentation.SetSpanSuccess(span)
	f.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	logger.Debug("token refreshed", "expiry", stored.Expiry)
	return stored, nil
}

// TokenSource returns a token source for key that refreshes through Google
// and writes refreshed tokens back to the store. Missing client settings or a
// missing credential both yield an error wrapping apperr.ErrNotAuthorized.
func (f *Flow) TokenSource(ctx context.Context, key string) (oauth2.TokenSource, error) {
	if err := f.client.Validate(); err != nil {
		return nil, apperr.E(opTokenSource, apperr.ErrNotAuthorized, err)
	}
	ts, err := credential.TokenSource(google.WithHTTPClient(ctx, f.httpClient), f.store, key, f.oauth)
	if err != nil {
		return nil, apperr.E(opTokenSource, apperr.ErrNotAuthorized, err)
	}
	return ts, nil
}

// Close releases the state store if the flow created it.
func (f *Flow) Close() {
	if f.ownsStates {
		f.states.Close()
	}
}

func (f *Flow) recordGoogle(ctx context.Context, operation string, err error, d time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	f.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, operation, status, d)
}

// classifyTokenError maps a token endpoint failure onto the error taxonomy.
// A 4xx answer means Google rejected the grant; anything else is transport.
func classifyTokenError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil &&
		rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
		return apperr.E(op, apperr.ErrAuthorization, err)
	}
	return apperr.E(op, apperr.ErrTransport, err)
}
