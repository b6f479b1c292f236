// Package service contains the business logic layer: the LLM client, the
// content generation gateway, lead dispatch, and collateral storage.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Provider identifiers for the chat-completions oracle.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

// ErrOutputTruncated is returned when the LLM response was cut off at the
// max_tokens limit. Truncated JSON is never parseable, so callers treat it
// as a hard failure.
type ErrOutputTruncated struct {
	OutputTokens int
	MaxTokens    int
	Model        string
}

func (e *ErrOutputTruncated) Error() string {
	return fmt.Sprintf("LLM output truncated: generated %d tokens (limit: %d) for model %s", e.OutputTokens, e.MaxTokens, e.Model)
}

// IsOutputTruncated returns true if the error is an output truncation error.
func IsOutputTruncated(err error) bool {
	var truncErr *ErrOutputTruncated
	return errors.As(err, &truncErr)
}

// LLMConfig identifies the provider, credentials, and model for a call.
type LLMConfig struct {
	Provider string
	APIKey   string
	BaseURL  string // override for openai-compatible gateways
	Model    string
}

// LLMCallOptions configures an LLM API call.
type LLMCallOptions struct {
	Temperature float64       // Default: 0.2
	MaxTokens   int           // Default: 4096
	Timeout     time.Duration // Default: 120s
	JSONMode    bool          // Request JSON response format (OpenAI-compatible only)
}

// LLMCallResult holds the result of an LLM API call including token usage.
type LLMCallResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason string // "length" indicates truncation
	Model        string
	MaxTokens    int
}

// IsTruncated returns true if the response hit the max_tokens limit.
func (r *LLMCallResult) IsTruncated() bool {
	return r.FinishReason == "length" || r.FinishReason == "max_tokens"
}

// TruncationError returns an ErrOutputTruncated if the response was truncated.
func (r *LLMCallResult) TruncationError() error {
	if !r.IsTruncated() {
		return nil
	}
	return &ErrOutputTruncated{
		OutputTokens: r.OutputTokens,
		MaxTokens:    r.MaxTokens,
		Model:        r.Model,
	}
}

// LLMClient makes direct chat-completions calls against the configured
// provider.
type LLMClient struct {
	logger *slog.Logger
	client *http.Client
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(logger *slog.Logger) *LLMClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClient{
		logger: logger.With("component", "llm-client"),
		client: &http.Client{},
	}
}

// Call makes a direct call to the provider and returns the response with
// token usage.
func (c *LLMClient) Call(ctx context.Context, config *LLMConfig, prompt string, opts LLMCallOptions) (*LLMCallResult, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("no API key available for provider %s", config.Provider)
	}

	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}

	reqBody := map[string]any{
		"model": config.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}

	// Anthropic has no response_format; JSON mode there relies on the
	// prompt instructions alone.
	if opts.JSONMode && config.Provider != ProviderAnthropic {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := c.getAPIURL(config)

	c.logger.Debug("making LLM API request",
		"provider", config.Provider,
		"model", config.Model,
		"api_url", apiURL,
		"prompt_length", len(prompt),
		"max_tokens", opts.MaxTokens,
	)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, config)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("LLM API request failed", "provider", config.Provider, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("LLM API error",
			"provider", config.Provider,
			"status_code", resp.StatusCode,
			"response", string(body),
		)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	result, err := c.parseResponse(config.Provider, body)
	if err != nil {
		return nil, err
	}
	result.Model = config.Model
	result.MaxTokens = opts.MaxTokens

	if result.IsTruncated() {
		c.logger.Warn("LLM output truncated",
			"provider", config.Provider,
			"model", config.Model,
			"output_tokens", result.OutputTokens,
			"max_tokens", opts.MaxTokens,
		)
	}

	return result, nil
}

func (c *LLMClient) getAPIURL(config *LLMConfig) string {
	if config.BaseURL != "" {
		return config.BaseURL + "/chat/completions"
	}
	switch config.Provider {
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1/chat/completions"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1/messages"
	case ProviderOpenAI:
		return "https://api.openai.com/v1/chat/completions"
	default:
		return "https://openrouter.ai/api/v1/chat/completions"
	}
}

func (c *LLMClient) setAuthHeaders(req *http.Request, config *LLMConfig) {
	switch config.Provider {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", config.APIKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+config.APIKey)
	}
}

// openAIResponse is the chat-completions response shape shared by OpenAI and
// OpenRouter.
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *LLMClient) parseResponse(provider string, body []byte) (*LLMCallResult, error) {
	if provider == ProviderAnthropic {
		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse anthropic response: %w", err)
		}
		if len(parsed.Content) == 0 {
			return nil, fmt.Errorf("empty anthropic response")
		}
		return &LLMCallResult{
			Content:      parsed.Content[0].Text,
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			FinishReason: parsed.StopReason,
		}, nil
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty response: no choices")
	}
	return &LLMCallResult{
		Content:      parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		FinishReason: parsed.Choices[0].FinishReason,
	}, nil
}
