package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidvoice/corvid/pkg/convo"
)

func TestAnthropicComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-sonnet-latest",
			"content": [{"type": "text", "text": "hello from anthropic"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	p := NewAnthropic("test-key", "claude-3-5-sonnet-latest", server.URL)
	result, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []convo.Message{
			{Role: convo.RoleSystem, Content: "system instructions"},
			{Role: convo.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from anthropic", result.Text)
	assert.Equal(t, 15, result.TokenCount)
	assert.Equal(t, "anthropic", p.Name())
}
