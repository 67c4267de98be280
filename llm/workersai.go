package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.williwaw.llm")

// maxErrorBodyBytes bounds how much of an upstream error body is read for
// the error message.
const maxErrorBodyBytes = 4 * 1024

// WorkersAIClient streams from a hosted inference endpoint that already
// emits the client wire format, so the body is relayed without re-encoding.
type WorkersAIClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiToken   string
}

type workersAIChatRequest struct {
	Messages  []ChatInput `json:"messages"`
	Stream    bool        `json:"stream"`
	MaxTokens *int        `json:"max_tokens,omitempty"`
}

func NewWorkersAIClient(baseURL, model, apiToken string) (*WorkersAIClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("workers-ai base URL not configured")
	}
	if model == "" {
		return nil, fmt.Errorf("workers-ai model not configured")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Workers AI client", "base_url", baseURL, "model", model)
	return &WorkersAIClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
		apiToken:   apiToken,
	}, nil
}

// ChatStream implements the StreamClient interface.
//
// The returned body is the upstream SSE stream, unread past the status
// line. Non-2xx responses are drained into the returned error.
func (w *WorkersAIClient) ChatStream(ctx context.Context, messages []ChatInput,
	params GenerationParams) (io.ReadCloser, error) {

	ctx, span := tracer.Start(ctx, "WorkersAIClient.ChatStream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", w.model))
	span.SetAttributes(attribute.Int("llm.num_messages", len(messages)))

	payload := workersAIChatRequest{
		Messages:  messages,
		Stream:    true,
		MaxTokens: params.MaxTokens,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to marshal request to Workers AI: %w", err)
	}

	url := w.baseURL + "/run/" + w.model
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create request to Workers AI: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if w.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiToken)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Workers AI call failed", "error", err)
		return nil, fmt.Errorf("workers AI call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		slog.Error("Workers AI returned an error",
			"status_code", resp.StatusCode,
			"response", string(body),
		)
		err := fmt.Errorf("workers AI failed with status %d: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return resp.Body, nil
}
