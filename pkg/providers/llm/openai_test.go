package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corvidvoice/corvid/pkg/convo"
)

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 0, "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hello from openai"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`))
	}))
	defer server.Close()

	p := NewOpenAI("test-key", "gpt-4o", server.URL)

	result, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []convo.Message{{Role: convo.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello from openai" {
		t.Errorf("expected 'hello from openai', got %q", result.Text)
	}
	if result.TokenCount != 8 {
		t.Errorf("expected token count 8, got %d", result.TokenCount)
	}
	if p.Name() != "openai" {
		t.Errorf("expected name 'openai', got %s", p.Name())
	}
}

func TestOpenAICompleteWithToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-2", "object": "chat.completion", "created": 0, "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"nyc\"}"}}]}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`))
	}))
	defer server.Close()

	p := NewOpenAI("test-key", "gpt-4o", server.URL)
	result, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []convo.Message{{Role: convo.RoleUser, Content: "weather?"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "get_weather" {
		t.Fatalf("expected one get_weather tool call, got %+v", result.ToolCalls)
	}
	if result.FinishReason != "tool_calls" {
		t.Errorf("expected finish_reason tool_calls, got %s", result.FinishReason)
	}
}

func TestNewGroqLLMReportsGroqName(t *testing.T) {
	p := NewGroqLLM("test-key", "llama-3.1-70b")
	if p.Name() != "groq" {
		t.Errorf("expected name 'groq', got %s", p.Name())
	}
}
