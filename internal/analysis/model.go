package analysis

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Model is a generative text model.
type Model interface {
	// Generate returns the model's text answer to prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Provider names the backend, for example "gemini".
	Provider() string

	// Name is the model identifier sent to the provider.
	Name() string
}

// providerStatus extracts the HTTP status code from a provider SDK error.
// It returns 0 when the error carries none.
func providerStatus(err error) int {
	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var oerr *openai.APIError
	if errors.As(err, &oerr) {
		return oerr.HTTPStatusCode
	}
	var rerr *openai.RequestError
	if errors.As(err, &rerr) {
		return rerr.HTTPStatusCode
	}
	return 0
}

// isClientError reports whether err is a request the provider rejected
// (4xx other than rate limiting). Retrying such a request cannot succeed.
func isClientError(err error) bool {
	status := providerStatus(err)
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}
