package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/apperr"
)

const (
	openAIAPIBase      = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// OpenAIOption configures the provider.
type OpenAIOption func(*OpenAIProvider)

func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.model = model }
}

func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = url }
}

func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = c }
}

// NewOpenAIProvider constructs a new OpenAI provider.
func NewOpenAIProvider(apiKey string, logger zerolog.Logger, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		model:   defaultOpenAIModel,
		baseURL: openAIAPIBase,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With().Str("component", "llm.openai").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

// ---- OpenAI wire types ----

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a blocking completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, userContent, instructions string, opts Options) (string, error) {
	req := openAIRequest{
		Model:       p.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: instructions},
			{Role: "user", Content: userContent},
		},
	}
	if opts.ResponseFormat == FormatJSON {
		req.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &apperr.ProviderError{Provider: p.Name(), Message: "http request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &apperr.ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}

	var out openAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &apperr.ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: "unmarshal response", Err: err}
	}
	if out.Error != nil {
		return "", apperr.NewProviderError(p.Name(), resp.StatusCode, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.NewProviderError(p.Name(), resp.StatusCode, "unexpected status")
	}
	if len(out.Choices) == 0 {
		return "", apperr.NewProviderError(p.Name(), resp.StatusCode, "empty choices")
	}

	text := out.Choices[0].Message.Content
	p.logger.Debug().Str("model", p.model).Int("chars", len(text)).Msg("openai complete")
	return text, nil
}
