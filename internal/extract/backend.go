// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AliSaadatV/AcmGENTIC/internal/httputil"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// AIBackend abstracts the Generative AI API so tests can supply a mock.
// Each implementation sends one prompt and returns the model's raw text
// reply. Per Strategy pattern.
type AIBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider API endpoints. Package-level vars for test substitution.
var (
	claudeAPIURL = "https://api.anthropic.com/v1/messages"
	openAIAPIURL = "https://api.openai.com/v1/chat/completions"
	geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"
)

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[types.LLMProvider]string{
	types.ProviderOpenAI:    "gpt-4o-mini",
	types.ProviderAnthropic: "claude-sonnet-4-5",
	types.ProviderGemini:    "gemini-2.0-flash",
}

const claudeMaxTokens = 4096

// NewBackend returns the backend for cfg.Provider. An empty provider
// selects OpenAI.
func NewBackend(cfg types.AIConfig, client *http.Client) (AIBackend, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = types.ProviderOpenAI
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", provider)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModels[provider]
	}

	switch provider {
	case types.ProviderAnthropic:
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: model, Temperature: cfg.Temperature, Client: client}, nil
	case types.ProviderOpenAI:
		return &OpenAIBackend{APIKey: cfg.APIKey, Model: model, Temperature: cfg.Temperature, Client: client}, nil
	case types.ProviderGemini:
		return &GeminiBackend{APIKey: cfg.APIKey, Model: model, Temperature: cfg.Temperature, Client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q (supported: openai, anthropic, gemini)", provider)
	}
}

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (c *ClaudeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := claudeRequest{
		Model:       c.Model,
		MaxTokens:   claudeMaxTokens,
		Temperature: c.Temperature,
		System:      jsonOnlyInstruction,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	headers := map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var cResp claudeResponse
	if err := postJSON(ctx, c.Client, claudeAPIURL, headers, reqBody, &cResp, "Claude"); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return sb.String(), nil
}

// OpenAIBackend calls the OpenAI Chat Completions API in JSON mode.
type OpenAIBackend struct {
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends prompt and returns the first choice's content.
func (c *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model: c.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: jsonOnlyInstruction},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.Temperature,
		ResponseFormat: &openAIFormat{Type: "json_object"},
	}

	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}

	var oResp openAIResponse
	if err := postJSON(ctx, c.Client, openAIAPIURL, headers, reqBody, &oResp, "OpenAI"); err != nil {
		return "", err
	}
	if oResp.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", oResp.Error.Message)
	}
	if len(oResp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return oResp.Choices[0].Message.Content, nil
}

// GeminiBackend calls the Gemini generateContent API with a JSON
// response MIME type.
type GeminiBackend struct {
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends prompt and returns the text parts of the first candidate.
func (c *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: jsonOnlyInstruction}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      c.Temperature,
			ResponseMIMEType: "application/json",
		},
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", geminiAPIURL, url.PathEscape(c.Model))
	headers := map[string]string{"x-goog-api-key": c.APIKey}

	var gResp geminiResponse
	if err := postJSON(ctx, c.Client, endpoint, headers, reqBody, &gResp, "Gemini"); err != nil {
		return "", err
	}
	if gResp.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s", gResp.Error.Message)
	}
	if len(gResp.Candidates) == 0 {
		return "", fmt.Errorf("Gemini API returned no candidates")
	}

	var sb strings.Builder
	for _, part := range gResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("Gemini API returned no content")
	}
	return sb.String(), nil
}

// APIError is a non-200 reply from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether another attempt may succeed. Client errors
// such as a bad key or request never do; 429 is already retried by
// httputil.DoWithRetry.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

// postJSON marshals body, POSTs it to endpoint with 429/503 retry, and
// decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body, out any, name string) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return fmt.Errorf("calling %s API: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Provider: name, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", name, err)
	}
	return nil
}
