package llm

import (
	"context"
	"encoding/json"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/tools"
)

// OpenAI is a Provider backed by the OpenAI chat completions API, built on
// the official SDK per MrWong99-glyphoxa's pkg/provider/llm/openai package.
type OpenAI struct {
	client oai.Client
	model  string
	name   string
}

// NewOpenAI constructs an OpenAI provider. baseURL overrides the default
// API host when non-empty (used by NewGroqLLM below, since Groq exposes an
// OpenAI-compatible endpoint).
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = "gpt-4o"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: oai.NewClient(opts...), model: model, name: "openai"}
}

// NewGroqLLM builds an OpenAI-shaped provider pointed at Groq's
// OpenAI-compatible chat completions endpoint.
func NewGroqLLM(apiKey, model string) *OpenAI {
	p := NewOpenAI(apiKey, model, "https://api.groq.com/openai/v1")
	p.name = "groq"
	return p
}

func (p *OpenAI) Name() string { return p.name }

func (p *OpenAI) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return CompletionResult{}, err
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	result := CompletionResult{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		TokenCount:   int(resp.Usage.TotalTokens),
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, tools.Call{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result, nil
}

func (p *OpenAI) buildParams(req CompletionRequest) (oai.ChatCompletionNewParams, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: param.NewOpt(td.Description),
				Parameters:  shared.FunctionParameters(paramSchemaMap(td)),
			},
		})
	}
	return params, nil
}

// paramSchemaMap converts a tools.Definition's ParamSchema map into the
// plain JSON-Schema object shape the OpenAI SDK expects.
func paramSchemaMap(td tools.Definition) map[string]any {
	props := map[string]any{}
	for name, schema := range td.Parameters {
		p := map[string]any{"type": schema.Type}
		if len(schema.Enum) > 0 {
			p["enum"] = schema.Enum
		}
		props[name] = p
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   td.Required,
	}
}

func convertMessage(m convo.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case convo.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case convo.RoleUser:
		return oai.UserMessage(m.Content), nil
	case convo.RoleAssistant:
		asst := oai.ChatCompletionAssistantMessageParam{}
		if m.Content != "" {
			asst.Content.OfString = oai.String(m.Content)
		}
		for _, tc := range m.ToolCalls {
			asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: oai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
	case convo.RoleTool:
		return oai.ToolMessage(m.Content, m.ToolCallID), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}
