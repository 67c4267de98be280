package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func intPtr(n int) *int { return &n }

// =============================================================================
// WorkersAIClient Tests
// =============================================================================

func TestWorkersAIClient_ChatStream_RequestShape(t *testing.T) {
	var gotReq workersAIChatRequest
	var gotAuth, gotPath string

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"response\":\"4\"}\n\ndata: [DONE]\n\n")
	}))
	defer upstream.Close()

	client, err := NewWorkersAIClient(upstream.URL, "@cf/meta/llama-3.1-8b-instruct", "secret")
	if err != nil {
		t.Fatalf("NewWorkersAIClient failed: %v", err)
	}

	messages := []ChatInput{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "What is 2+2?"},
	}
	body, err := client.ChatStream(context.Background(), messages, GenerationParams{MaxTokens: intPtr(1024)})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	defer body.Close()

	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotPath != "/run/@cf/meta/llama-3.1-8b-instruct" {
		t.Errorf("path = %q, want /run/<model>", gotPath)
	}
	if !gotReq.Stream {
		t.Error("request stream flag = false, want true")
	}
	if gotReq.MaxTokens == nil || *gotReq.MaxTokens != 1024 {
		t.Errorf("max_tokens = %v, want 1024", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "What is 2+2?" {
		t.Errorf("messages = %+v, want the two sent messages", gotReq.Messages)
	}
}

func TestWorkersAIClient_ChatStream_BodyPassthrough(t *testing.T) {
	stream := "data: {\"response\":\"Hel\"}\n\ndata: {\"response\":\"lo\"}\n\ndata: [DONE]\n\n"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, stream)
	}))
	defer upstream.Close()

	client, err := NewWorkersAIClient(upstream.URL, "test-model", "")
	if err != nil {
		t.Fatalf("NewWorkersAIClient failed: %v", err)
	}

	body, err := client.ChatStream(context.Background(), []ChatInput{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if string(got) != stream {
		t.Errorf("body = %q, want upstream bytes verbatim", got)
	}
}

func TestWorkersAIClient_ChatStream_UpstreamErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	client, err := NewWorkersAIClient(upstream.URL, "test-model", "")
	if err != nil {
		t.Fatalf("NewWorkersAIClient failed: %v", err)
	}

	_, err = client.ChatStream(context.Background(), []ChatInput{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("ChatStream succeeded on 503, want error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %v, want status code in message", err)
	}
}

func TestNewWorkersAIClient_RequiresConfig(t *testing.T) {
	if _, err := NewWorkersAIClient("", "model", ""); err == nil {
		t.Error("missing base URL accepted, want error")
	}
	if _, err := NewWorkersAIClient("http://localhost", "", ""); err == nil {
		t.Error("missing model accepted, want error")
	}
}

// =============================================================================
// Wire Format Tests
// =============================================================================

func TestWriteTokenEvent_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTokenEvent(&buf, `he said "hi"`); err != nil {
		t.Fatalf("WriteTokenEvent failed: %v", err)
	}

	want := "data: {\"response\":\"he said \\\"hi\\\"\"}\n\n"
	if buf.String() != want {
		t.Errorf("event = %q, want %q", buf.String(), want)
	}
}

func TestWriteDoneEvent_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDoneEvent(&buf); err != nil {
		t.Fatalf("WriteDoneEvent failed: %v", err)
	}
	if buf.String() != "data: [DONE]\n\n" {
		t.Errorf("event = %q, want data: [DONE] terminator", buf.String())
	}
}

// =============================================================================
// Factory Tests
// =============================================================================

func TestNewStreamClient_UnknownBackend(t *testing.T) {
	if _, err := NewStreamClient(ClientConfig{Backend: "mainframe"}); err == nil {
		t.Error("unknown backend accepted, want error")
	}
}

func TestNewStreamClient_DefaultsToWorkersAI(t *testing.T) {
	client, err := NewStreamClient(ClientConfig{
		BaseURL: "http://localhost:8787",
		Model:   "test-model",
	})
	if err != nil {
		t.Fatalf("NewStreamClient failed: %v", err)
	}
	if _, ok := client.(*WorkersAIClient); !ok {
		t.Errorf("client type = %T, want *WorkersAIClient", client)
	}
}
