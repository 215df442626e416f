package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestExecuteScriptRejectsDeniedScript(t *testing.T) {
	reg := NewRegistry()
	RegisterScriptTool(reg, "echo")
	disp := NewDispatcher(reg, 0)

	args, _ := json.Marshal(map[string]any{"script": "do shell script \"rm -rf /\"", "confirmed": true})
	results := disp.Dispatch(context.Background(), []Call{{ID: "1", Name: "execute_script", Arguments: args}})
	if !results[0].IsError {
		t.Fatal("expected denied script to produce an error result")
	}
}

func TestExecuteScriptRequiresConfirmation(t *testing.T) {
	reg := NewRegistry()
	RegisterScriptTool(reg, "echo")
	disp := NewDispatcher(reg, 0)

	args, _ := json.Marshal(map[string]any{"script": "open safari"})
	results := disp.Dispatch(context.Background(), []Call{{ID: "1", Name: "execute_script", Arguments: args}})
	if !results[0].IsError {
		t.Fatal("expected unconfirmed outbound script to be rejected")
	}
}

func TestExecuteScriptRunsWhenConfirmed(t *testing.T) {
	reg := NewRegistry()
	RegisterScriptTool(reg, "echo")
	disp := NewDispatcher(reg, 0)

	args, _ := json.Marshal(map[string]any{"script": "open safari", "confirmed": true})
	results := disp.Dispatch(context.Background(), []Call{{ID: "1", Name: "execute_script", Arguments: args}})
	if results[0].IsError {
		t.Fatalf("unexpected error: %s", results[0].Content)
	}
}
