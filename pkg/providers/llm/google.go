package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/tools"
)

// Google is a Provider backed by the Gemini API via the official
// generative-ai-go client.
type Google struct {
	client *genai.Client
	model  string
}

// NewGoogle constructs a Google provider. The underlying client holds a
// connection pool for the process lifetime; callers should construct one
// Google per apiKey rather than per request.
func NewGoogle(ctx context.Context, apiKey, model, baseURL string) (*Google, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}
	return &Google{client: client, model: model}, nil
}

func (p *Google) Name() string { return "google" }

func (p *Google) Close() error { return p.client.Close() }

func (p *Google) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	gm := p.client.GenerativeModel(p.model)
	if req.Temperature != 0 {
		t := float32(req.Temperature)
		gm.Temperature = &t
	}
	if req.MaxTokens > 0 {
		n := int32(req.MaxTokens)
		gm.MaxOutputTokens = &n
	}
	for _, td := range req.Tools {
		gm.Tools = append(gm.Tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  paramSchemaToGenaiSchema(td),
			}},
		})
	}

	cs := gm.StartChat()
	cs.History = historyFromMessages(req.Messages)

	last := lastUserOrToolContent(req.Messages)
	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("google: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return CompletionResult{}, fmt.Errorf("google: no candidates returned")
	}

	result := CompletionResult{FinishReason: resp.Candidates[0].FinishReason.String()}
	if resp.Candidates[0].Content == nil {
		return result, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			result.Text += string(v)
		case genai.FunctionCall:
			args, _ := json.Marshal(v.Args)
			result.ToolCalls = append(result.ToolCalls, tools.Call{
				Name:      v.Name,
				Arguments: args,
			})
		}
	}
	if resp.UsageMetadata != nil {
		result.TokenCount = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

// historyFromMessages converts every message except the final one into
// Gemini chat history; Gemini has no "system" role, so system messages are
// folded in as a leading user turn (matching the teacher's own workaround).
func historyFromMessages(messages []convo.Message) []*genai.Content {
	if len(messages) == 0 {
		return nil
	}
	var out []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		role, parts := convertGoogleMessage(m)
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

func lastUserOrToolContent(messages []convo.Message) []genai.Part {
	if len(messages) == 0 {
		return nil
	}
	_, parts := convertGoogleMessage(messages[len(messages)-1])
	return parts
}

func convertGoogleMessage(m convo.Message) (role string, parts []genai.Part) {
	switch m.Role {
	case convo.RoleSystem, convo.RoleUser:
		return "user", []genai.Part{genai.Text(m.Content)}
	case convo.RoleAssistant:
		parts = []genai.Part{genai.Text(m.Content)}
		return "model", parts
	case convo.RoleTool:
		var result map[string]any
		json.Unmarshal([]byte(m.Content), &result)
		if result == nil {
			result = map[string]any{"result": m.Content}
		}
		return "function", []genai.Part{genai.FunctionResponse{Name: m.ToolName, Response: result}}
	default:
		return "user", []genai.Part{genai.Text(m.Content)}
	}
}

func paramSchemaToGenaiSchema(td tools.Definition) *genai.Schema {
	props := map[string]*genai.Schema{}
	for name, schema := range td.Parameters {
		props[name] = &genai.Schema{Type: genaiType(schema.Type), Enum: schema.Enum}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   td.Required,
	}
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
