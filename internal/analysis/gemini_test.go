package analysis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsense/internal/apperr"
)

func newGeminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		assert.NoError(t, json.Unmarshal(raw, &req))
		if assert.Len(t, req.Contents, 1) && assert.Len(t, req.Contents[0].Parts, 1) {
			assert.Contains(t, req.Contents[0].Parts[0].Text, "Subject: Hello")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewGeminiModel_MissingKey(t *testing.T) {
	m, err := NewGeminiModel(context.Background(), GeminiConfig{})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, apperr.ErrMisconfigured)
}

func TestGeminiModel_Generate(t *testing.T) {
	srv := newGeminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"classification\":\"Sales\",\"sentiment\":\"Positive\"}"}]},"finishReason":"STOP"}]}`)

	m, err := NewGeminiModel(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-test",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, m.Provider())
	assert.Equal(t, "gemini-test", m.Name())

	res, err := NewAnalyzer(m, Options{}).Analyze(context.Background(), "Hello", "World")
	require.NoError(t, err)
	assert.Equal(t, &Result{Classification: "Sales", Sentiment: "Positive"}, res)
}

func TestGeminiModel_ProviderError(t *testing.T) {
	srv := newGeminiServer(t, http.StatusServiceUnavailable,
		`{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`)

	m, err := NewGeminiModel(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-test",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	res, err := NewAnalyzer(m, Options{}).Analyze(context.Background(), "Hello", "World")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, http.StatusServiceUnavailable, providerStatus(err))
}

func TestDefaultGeminiModel(t *testing.T) {
	m, err := NewGeminiModel(context.Background(), GeminiConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, m.Name())
}
