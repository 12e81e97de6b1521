package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsense/internal/analysis"
	"github.com/teemow/inboxsense/internal/apperr"
	"github.com/teemow/inboxsense/internal/credential"
	"github.com/teemow/inboxsense/internal/gmail"
	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/pipeline"
)

type fakeAuthorizer struct {
	configured  bool
	urlErr      error
	exchangeErr error

	consentKeys []string
	code, state string
}

func (a *fakeAuthorizer) Configured() bool { return a.configured }

func (a *fakeAuthorizer) ConsentURL(_ context.Context, key string) (string, error) {
	a.consentKeys = append(a.consentKeys, key)
	if a.urlErr != nil {
		return "", a.urlErr
	}
	return "https://accounts.example.com/o/oauth2/auth?state=s-1", nil
}

func (a *fakeAuthorizer) Exchange(_ context.Context, code, state string) (credential.Credential, error) {
	a.code, a.state = code, state
	if a.exchangeErr != nil {
		return credential.Credential{}, a.exchangeErr
	}
	return credential.Credential{AccessToken: "ya29.a"}, nil
}

type fakePipeline struct {
	run     pipeline.Outcome
	text    pipeline.Outcome
	keys    []string
	subject string
	body    string
}

func (p *fakePipeline) Run(_ context.Context, key string) pipeline.Outcome {
	p.keys = append(p.keys, key)
	return p.run
}

func (p *fakePipeline) AnalyzeText(_ context.Context, subject, body string) pipeline.Outcome {
	p.subject, p.body = subject, body
	return p.text
}

var salesPositive = &analysis.Result{Classification: "Sales", Sentiment: "Positive"}

func okOutcome() pipeline.Outcome {
	return pipeline.Outcome{OK: true, Message: pipeline.MessageSuccess, Analysis: salesPositive, Step: instrumentation.StepComplete}
}

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	if cfg.Pipeline == nil {
		cfg.Pipeline = &fakePipeline{}
	}
	srv, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNew_RequiresPipeline(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestRoot(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RootMessage, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthGoogle(t *testing.T) {
	t.Run("redirects to consent screen", func(t *testing.T) {
		auth := &fakeAuthorizer{configured: true}
		rec := do(t, newTestServer(t, Config{Auth: auth}), http.MethodGet, "/auth/google", "")

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://accounts.example.com/o/oauth2/auth?state=s-1", rec.Header().Get("Location"))
		assert.Equal(t, []string{credential.DefaultKey}, auth.consentKeys)
	})

	t.Run("not configured", func(t *testing.T) {
		auth := &fakeAuthorizer{}
		rec := do(t, newTestServer(t, Config{Auth: auth}), http.MethodGet, "/auth/google", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, apperr.CodeConfiguration, resp.Code)
		assert.Empty(t, auth.consentKeys)
	})

	t.Run("no authorizer", func(t *testing.T) {
		rec := do(t, newTestServer(t, Config{}), http.MethodGet, "/auth/google", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("consent url failure", func(t *testing.T) {
		auth := &fakeAuthorizer{configured: true, urlErr: errors.New("entropy exhausted")}
		rec := do(t, newTestServer(t, Config{Auth: auth}), http.MethodGet, "/auth/google", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decode(t, rec).Error, "entropy exhausted")
	})

	t.Run("per session starts a session", func(t *testing.T) {
		sessions := NewSessionManager(SessionConfig{PerSession: true})
		t.Cleanup(sessions.Stop)
		auth := &fakeAuthorizer{configured: true}

		rec := do(t, newTestServer(t, Config{Auth: auth, Sessions: sessions}), http.MethodGet, "/auth/google", "")
		assert.Equal(t, http.StatusFound, rec.Code)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookieName, cookies[0].Name)
		require.Len(t, auth.consentKeys, 1)
		assert.Equal(t, cookies[0].Value, auth.consentKeys[0])
		_, err := uuid.Parse(auth.consentKeys[0])
		assert.NoError(t, err)
	})
}

func TestOAuthCallback(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		exchangeErr error
		wantStatus  int
		wantMessage string
		wantCode    string
	}{
		{
			name:        "success",
			query:       "?code=4/abc&state=s-1",
			wantStatus:  http.StatusOK,
			wantMessage: msgAuthSuccess,
		},
		{
			name:        "rejected grant",
			query:       "?code=bad&state=s-1",
			exchangeErr: apperr.E("auth.exchange", apperr.ErrAuthorization, errors.New("invalid_grant")),
			wantStatus:  http.StatusBadRequest,
			wantMessage: msgAuthFailure,
			wantCode:    apperr.CodeAuthorization,
		},
		{
			name:        "token endpoint down",
			query:       "?code=4/abc&state=s-1",
			exchangeErr: apperr.E("auth.exchange", apperr.ErrTransport, errors.New("connection refused")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: msgAuthFailure,
			wantCode:    apperr.CodeTransport,
		},
		{
			name:        "user denied consent",
			query:       "?error=access_denied",
			wantStatus:  http.StatusBadRequest,
			wantMessage: msgAuthFailure,
			wantCode:    apperr.CodeAuthorization,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuthorizer{configured: true, exchangeErr: tt.exchangeErr}
			rec := do(t, newTestServer(t, Config{Auth: auth}), http.MethodGet, "/oauth2callback"+tt.query, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}

	t.Run("passes code and state", func(t *testing.T) {
		auth := &fakeAuthorizer{configured: true}
		do(t, newTestServer(t, Config{Auth: auth}), http.MethodGet, "/oauth2callback?code=4/abc&state=s-1", "")
		assert.Equal(t, "4/abc", auth.code)
		assert.Equal(t, "s-1", auth.state)
	})
}

func TestAnalyzeTest(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p := &fakePipeline{text: okOutcome()}
		rec := do(t, newTestServer(t, Config{Pipeline: p}), http.MethodPost, "/analyze-test", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, "Analysis successful (using hardcoded data)", resp.Message)
		assert.Equal(t, salesPositive, resp.Analysis)
		assert.Equal(t, SampleSubject, p.subject)
		assert.Contains(t, p.body, "SuperWidget Pro")
	})

	t.Run("failure", func(t *testing.T) {
		p := &fakePipeline{text: pipeline.Outcome{
			Message: "Failed to get analysis from Gemini. Check server logs.",
			Err:     apperr.E("analysis.analyze", apperr.ErrTransport, errors.New("503")),
			Step:    instrumentation.StepAnalyze,
		}}
		rec := do(t, newTestServer(t, Config{Pipeline: p}), http.MethodPost, "/analyze-test", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, "Analysis failed (using hardcoded data)", resp.Message)
		assert.Equal(t, "Failed to get analysis from Gemini. Check server logs.", resp.Error)
		assert.Nil(t, resp.Analysis)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(t, newTestServer(t, Config{}), http.MethodGet, "/analyze-test", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		outcome    pipeline.Outcome
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "success",
			body:       `{"subject":"Invoice #42","body":"Please find attached."}`,
			outcome:    okOutcome(),
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "invalid json",
			body:       `{"subject":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body field",
			body:       `{"subject":"Hi","body":"  "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "analysis failure",
			body: `{"subject":"Hi","body":"there"}`,
			outcome: pipeline.Outcome{
				Message: "Failed to get analysis from OpenAI. Check server logs.",
				Err:     apperr.ErrMalformedResponse,
				Step:    instrumentation.StepAnalyze,
			},
			wantStatus: http.StatusInternalServerError,
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{text: tt.outcome}
			rec := do(t, newTestServer(t, Config{Pipeline: p}), http.MethodPost, "/analyze", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, tt.wantCalled, p.subject != "")
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, salesPositive, resp.Analysis)
			} else {
				assert.Nil(t, resp.Analysis)
			}
		})
	}
}

func TestAnalyzeLatest(t *testing.T) {
	email := &gmail.EmailMessage{ID: "m1", Subject: "Invoice #42", Body: "Please pay."}

	tests := []struct {
		name       string
		outcome    pipeline.Outcome
		wantStatus int
		wantCode   string
	}{
		{
			name: "success",
			outcome: pipeline.Outcome{
				OK: true, Message: pipeline.MessageSuccess, Analysis: salesPositive, Email: email,
				Step: instrumentation.StepComplete,
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not authorized",
			outcome: pipeline.Outcome{
				Message: pipeline.MessageNotAuthorized,
				Err:     apperr.E("pipeline.credential", apperr.ErrNotAuthorized, errors.New("no credential")),
				Step:    instrumentation.StepCredential,
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperr.CodeAuthorization,
		},
		{
			name: "no unread mail",
			outcome: pipeline.Outcome{
				Message: pipeline.MessageNoUnreadMail,
				Err:     gmail.ErrNoUnreadMail,
				Step:    instrumentation.StepRetrieve,
			},
			wantStatus: http.StatusNotFound,
			wantCode:   apperr.CodeInternal,
		},
		{
			name: "gmail unavailable",
			outcome: pipeline.Outcome{
				Message: pipeline.MessageRetrieveError,
				Err:     apperr.E("gmail.list", apperr.ErrTransport, errors.New("503")),
				Step:    instrumentation.StepRetrieve,
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperr.CodeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{run: tt.outcome}
			rec := do(t, newTestServer(t, Config{Pipeline: p}), http.MethodPost, "/analyze-latest", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, []string{credential.DefaultKey}, p.keys)
			resp := decode(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.outcome.OK {
				assert.Equal(t, salesPositive, resp.Analysis)
				require.NotNil(t, resp.Email)
				assert.Equal(t, "Invoice #42", resp.Email.Subject)
			} else {
				assert.Equal(t, tt.outcome.Message, resp.Error)
				assert.Nil(t, resp.Analysis)
			}
		})
	}
}

func TestAnalyzeLatest_UsesSessionCookie(t *testing.T) {
	sessions := NewSessionManager(SessionConfig{PerSession: true})
	t.Cleanup(sessions.Stop)
	p := &fakePipeline{run: okOutcome()}
	h := newTestServer(t, Config{Pipeline: p, Sessions: sessions})

	key := sessions.Ensure(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	req := httptest.NewRequest(http.MethodPost, "/analyze-latest", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: key})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{key}, p.keys)
}
