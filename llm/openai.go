package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OpenAIClient adapts an OpenAI-compatible chat completion stream to the
// client wire format. Deltas are re-encoded through a pipe so callers see
// the same byte stream a native backend would produce.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// ChatStream implements the StreamClient interface.
func (o *OpenAIClient) ChatStream(ctx context.Context, messages []ChatInput,
	params GenerationParams) (io.ReadCloser, error) {

	ctx, span := tracer.Start(ctx, "OpenAIClient.ChatStream")
	span.SetAttributes(attribute.String("llm.model", o.model))
	span.SetAttributes(attribute.Int("llm.num_messages", len(messages)))

	req := openai.ChatCompletionRequest{
		Model:  o.model,
		Stream: true,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer span.End()
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				_ = WriteDoneEvent(pw)
				pw.Close()
				return
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				// Close without the sentinel: the reader sees a
				// truncated stream, same as a dropped connection.
				pw.CloseWithError(fmt.Errorf("openai stream recv: %w", err))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if err := WriteTokenEvent(pw, delta); err != nil {
				// Reader side closed; stop pulling deltas.
				return
			}
		}
	}()

	return pr, nil
}
