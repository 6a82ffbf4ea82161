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
	geminiAPIBase      = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-1.5-flash"
)

// GeminiProvider implements Provider using the Gemini generateContent API.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// GeminiOption configures the provider.
type GeminiOption func(*GeminiProvider)

func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = c }
}

// NewGeminiProvider constructs a new Gemini provider.
func NewGeminiProvider(apiKey string, logger zerolog.Logger, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:  apiKey,
		model:   defaultGeminiModel,
		baseURL: geminiAPIBase,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With().Str("component", "llm.gemini").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

// ---- Gemini wire types ----

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
		Temperature      float64 `json:"temperature,omitempty"`
		ResponseMimeType string  `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a blocking completion request.
func (p *GeminiProvider) Complete(ctx context.Context, userContent, instructions string, opts Options) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userContent}}},
		},
	}
	if instructions != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: instructions}}}
	}
	req.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	req.GenerationConfig.Temperature = opts.Temperature
	if opts.ResponseFormat == FormatJSON {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &apperr.ProviderError{Provider: p.Name(), Message: "http request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &apperr.ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &apperr.ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: "unmarshal response", Err: err}
	}
	if out.Error != nil {
		return "", apperr.NewProviderError(p.Name(), resp.StatusCode, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.NewProviderError(p.Name(), resp.StatusCode, "unexpected status")
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", apperr.NewProviderError(p.Name(), resp.StatusCode, "empty candidates")
	}

	text := ""
	for _, part := range out.Candidates[0].Content.Parts {
		text += part.Text
	}
	p.logger.Debug().Str("model", p.model).Int("chars", len(text)).Msg("gemini complete")
	return text, nil
}
