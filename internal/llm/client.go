// Package llm provides chat completion clients for the voice and
// director models. Backends differ in transport but share one contract:
// a message list goes in, assistant text comes out, and any transport or
// backend failure is returned as an error for the caller to classify.
package llm

import (
	"context"
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64 // Backends may clamp; callers must tolerate that
	MaxTokens   int
}

// Client is the chat completion capability.
type Client interface {
	// Chat runs one completion and returns the assistant text.
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider string // "openai", "ollama" or "genai"
	BaseURL  string
	APIKey   string
}

// NewClient creates a chat client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey), nil
	case "ollama":
		return NewOllamaClient(cfg.BaseURL)
	case "genai":
		return NewGenAIClient(cfg.APIKey)
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s (use 'openai', 'ollama' or 'genai')", cfg.Provider)
	}
}

// System is a convenience constructor for a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User is a convenience constructor for a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant is a convenience constructor for an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }
