package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chorale/internal/logging"
)

// OpenAIClient talks to an OpenAI-compatible HTTP API. Besides chat
// completions it exposes image generation, which the tool execution
// stage uses for the image branch.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			// Generations can take a while; the pipeline has no retry.
			Timeout: 5 * time.Minute,
		},
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat runs one completion and returns the assistant text.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	payload := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	raw, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	logging.API("chat completion: model=%s messages=%d", req.Model, len(req.Messages))
	return parsed.Choices[0].Message.Content, nil
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GeneratedImage is the result of one image generation: either a remote
// URL to download or inline base64 payload, depending on the backend.
type GeneratedImage struct {
	URL     string
	B64Data string
}

// GenerateImage requests one image for the given prompt with fixed
// size/quality parameters.
func (c *OpenAIClient) GenerateImage(ctx context.Context, model, prompt string, width, height int) (*GeneratedImage, error) {
	payload := imageRequest{
		Model:   model,
		Prompt:  prompt,
		Size:    fmt.Sprintf("%dx%d", width, height),
		Quality: "hd",
		N:       1,
	}

	raw, err := c.post(ctx, "/images/generations", payload)
	if err != nil {
		return nil, err
	}

	var parsed imageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("image response contained no data")
	}

	return &GeneratedImage{URL: parsed.Data[0].URL, B64Data: parsed.Data[0].B64JSON}, nil
}

// post sends a JSON request and returns the raw response body.
func (c *OpenAIClient) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, raw)
	}
	return raw, nil
}
