package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaClient runs chat completions against a local Ollama server.
// Ollama applies its own sampling defaults; the temperature passed here
// is a request, not a guarantee.
type OllamaClient struct {
	client *api.Client
}

// NewOllamaClient creates a client for a local Ollama server.
func NewOllamaClient(endpoint string) (*OllamaClient, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama endpoint %q: %w", endpoint, err)
	}
	return &OllamaClient{
		client: api.NewClient(base, &http.Client{Timeout: 5 * time.Minute}),
	}, nil
}

// Chat runs one completion and returns the assistant text.
func (c *OllamaClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]api.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}

	var out strings.Builder
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return out.String(), nil
}
