package llm

import (
	"context"
	"fmt"
	"io"
)

// Backend names accepted by NewStreamClient.
const (
	BackendWorkersAI = "workers-ai"
	BackendOpenAI    = "openai"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

// ChatInput is the normalized message shape sent to every backend.
type ChatInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamClient is the interface every inference backend satisfies.
//
// ChatStream returns the reply as an SSE byte stream in the client wire
// format, one token event per data line:
//
//	data: {"response":"Hello"}
//
// terminated by "data: [DONE]". Backends that natively speak this format
// hand back the response body untouched; others re-encode. The caller owns
// the ReadCloser.
type StreamClient interface {
	ChatStream(ctx context.Context, messages []ChatInput, params GenerationParams) (io.ReadCloser, error)
}

// ClientConfig carries backend selection and credentials.
type ClientConfig struct {
	Backend string

	// Workers AI passthrough backend.
	BaseURL  string
	Model    string
	APIToken string

	// OpenAI-compatible backend.
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
}

// NewStreamClient builds the configured backend.
func NewStreamClient(cfg ClientConfig) (StreamClient, error) {
	switch cfg.Backend {
	case BackendWorkersAI, "":
		return NewWorkersAIClient(cfg.BaseURL, cfg.Model, cfg.APIToken)
	case BackendOpenAI:
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
