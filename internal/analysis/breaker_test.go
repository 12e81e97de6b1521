package analysis

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func testBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 1,
	}
}

func TestWithBreaker_TripsOnProviderFailures(t *testing.T) {
	inner := &fakeModel{err: errors.New("503 from upstream")}
	m := WithBreaker(inner, testBreakerSettings(), nil)

	for i := 0; i < 2; i++ {
		_, err := m.Generate(context.Background(), "p")
		require.Error(t, err)
	}

	_, err := m.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, breakerOpen(err))
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the model")
}

func TestWithBreaker_IgnoresClientErrors(t *testing.T) {
	inner := &fakeModel{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}}
	m := WithBreaker(inner, testBreakerSettings(), nil)

	for i := 0; i < 5; i++ {
		_, err := m.Generate(context.Background(), "p")
		assert.False(t, breakerOpen(err))
	}
	assert.Equal(t, 5, inner.calls)
}

func TestWithBreaker_PassesThrough(t *testing.T) {
	inner := &fakeModel{text: "ok"}
	m := WithBreaker(inner, DefaultBreakerSettings(), nil)

	out, err := m.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "fake", m.Provider())
	assert.Equal(t, "fake-1", m.Name())

	assert.Nil(t, WithBreaker(nil, DefaultBreakerSettings(), nil))
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "gemini bad request", err: genai.APIError{Code: http.StatusBadRequest}, want: true},
		{name: "gemini unavailable", err: genai.APIError{Code: http.StatusServiceUnavailable}, want: false},
		{name: "openai rate limited", err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, want: false},
		{name: "openai request error", err: &openai.RequestError{HTTPStatusCode: http.StatusNotFound}, want: true},
		{name: "plain", err: errors.New("dial tcp: refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isClientError(tt.err))
		})
	}
}
