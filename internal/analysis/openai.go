package analysis

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teemow/inboxsense/internal/apperr"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAIModel.
type OpenAIConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the OpenAI API endpoint, including the /v1 suffix.
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIModel generates text through the OpenAI chat completions API.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel creates an OpenAIModel. A missing API key yields an error
// wrapping apperr.ErrMisconfigured.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, apperr.E("analysis.openai", apperr.ErrMisconfigured, errors.New("OPENAI_API_KEY is not set"))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIModel{client: openai.NewClientWithConfig(config), model: model}, nil
}

// Generate implements Model. The request asks for a JSON object response.
func (m *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (m *OpenAIModel) Provider() string { return ProviderOpenAI }

func (m *OpenAIModel) Name() string { return m.model }
