// Package llm defines the C9/C10 language-model provider seam: a uniform
// Provider interface over OpenAI, Anthropic, Google, Groq, and a
// deterministic Mock, all speaking pkg/convo's Message/ToolCall shape so
// the pipeline executor never touches a vendor SDK type directly.
package llm

import (
	"context"

	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/tools"
)

// CompletionRequest carries one round of the tool-calling loop.
type CompletionRequest struct {
	Messages    []convo.Message
	Tools       []tools.Definition
	Temperature float64
	MaxTokens   int
}

// CompletionResult is a provider's answer for one round: either final text,
// or a set of tool calls the orchestrator must dispatch before calling
// Complete again with the tool results appended.
type CompletionResult struct {
	Text         string
	ToolCalls    []tools.Call
	FinishReason string // "stop", "tool_calls", "length"
	TokenCount   int
}

// Provider is the abstraction every LLM backend satisfies.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	Name() string
}
