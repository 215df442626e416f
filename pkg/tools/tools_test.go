package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newRegistryWithEcho() *Registry {
	reg := NewRegistry()
	reg.Register(Definition{
		Name:        "echo",
		Description: "echoes its message argument",
		Parameters: map[string]ParamSchema{
			"message": {Type: "string", MaxLength: 10},
			"mode":    {Type: "string", Enum: []string{"upper", "lower"}},
		},
		Required: []string{"message"},
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args map[string]string
		json.Unmarshal(raw, &args)
		return args["message"], nil
	})
	return reg
}

func TestValidateUnknownTool(t *testing.T) {
	reg := newRegistryWithEcho()
	err := reg.Validate(Call{Name: "nope"})
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestValidateMissingRequired(t *testing.T) {
	reg := newRegistryWithEcho()
	err := reg.Validate(Call{Name: "echo", Arguments: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected error for missing required argument")
	}
}

func TestValidateMaxLength(t *testing.T) {
	reg := newRegistryWithEcho()
	err := reg.Validate(Call{Name: "echo", Arguments: json.RawMessage(`{"message":"this is way too long"}`)})
	if err == nil {
		t.Fatal("expected error for exceeding max length")
	}
}

func TestValidateEnum(t *testing.T) {
	reg := newRegistryWithEcho()
	err := reg.Validate(Call{Name: "echo", Arguments: json.RawMessage(`{"message":"hi","mode":"sideways"}`)})
	if err == nil {
		t.Fatal("expected error for invalid enum value")
	}
}

func TestDispatchReturnsResultsInOrder(t *testing.T) {
	reg := newRegistryWithEcho()
	d := NewDispatcher(reg, 0)
	calls := []Call{
		{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"message":"first"}`)},
		{ID: "2", Name: "echo", Arguments: json.RawMessage(`{"message":"second"}`)},
	}
	results := d.Dispatch(context.Background(), calls)
	if len(results) != 2 || results[0].Content != "first" || results[1].Content != "second" {
		t.Fatalf("expected ordered results, got %+v", results)
	}
}

func TestDispatchAssignsIDWhenMissing(t *testing.T) {
	reg := newRegistryWithEcho()
	d := NewDispatcher(reg, 0)
	results := d.Dispatch(context.Background(), []Call{{Name: "echo", Arguments: json.RawMessage(`{"message":"hi"}`)}})
	if results[0].ID == "" {
		t.Fatal("expected a generated ID when the call arrived without one")
	}
}

func TestDispatchValidationFailureIsErrorResultNotPanic(t *testing.T) {
	reg := newRegistryWithEcho()
	d := NewDispatcher(reg, 0)
	results := d.Dispatch(context.Background(), []Call{{ID: "1", Name: "bogus"}})
	if !results[0].IsError {
		t.Fatal("expected error result for unknown tool")
	}
}

func TestSafePathRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	if _, err := SafePath(dir, "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestSafePathAllowsNestedPath(t *testing.T) {
	dir := t.TempDir()
	abs, err := SafePath(dir, "notes/a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(abs) != filepath.Join(dir, "notes") {
		t.Fatalf("unexpected resolved path: %s", abs)
	}
}

func TestCheckScriptAllowedRejectsDenylisted(t *testing.T) {
	if err := CheckScriptAllowed(`tell application "Terminal" to do shell script "rm -rf /"`); err == nil {
		t.Fatal("expected denylisted script to be rejected")
	}
}

func TestCheckScriptAllowedPermitsBenign(t *testing.T) {
	if err := CheckScriptAllowed(`tell application "Notes" to make new note`); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestCheckConfirmationRequiresFlag(t *testing.T) {
	def := Definition{Name: "send_message", RequiresConfirmation: true}
	if err := CheckConfirmation(def, ConfirmationArgs{}, false); err == nil {
		t.Fatal("expected confirmation required error")
	}
	if err := CheckConfirmation(def, ConfirmationArgs{Confirmed: true}, false); err != nil {
		t.Fatalf("unexpected error with confirmed=true: %v", err)
	}
	if err := CheckConfirmation(def, ConfirmationArgs{}, true); err != nil {
		t.Fatalf("unexpected error with session silent_ok: %v", err)
	}
}

func TestFileToolsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	RegisterFileTools(reg, dir, nil, nil)
	d := NewDispatcher(reg, 0)

	writeArgs, _ := json.Marshal(writeFileArgs{Path: "a.txt", Content: "hello"})
	results := d.Dispatch(context.Background(), []Call{{ID: "1", Name: "write_file", Arguments: writeArgs}})
	if results[0].IsError {
		t.Fatalf("write_file failed: %s", results[0].Content)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	readArgs, _ := json.Marshal(readFileArgs{Path: "a.txt"})
	results = d.Dispatch(context.Background(), []Call{{ID: "2", Name: "read_file", Arguments: readArgs}})
	if results[0].IsError {
		t.Fatalf("read_file failed: %s", results[0].Content)
	}
}

func TestFileToolsRejectsDeniedPath(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	RegisterFileTools(reg, dir, nil, []string{"secrets"})
	d := NewDispatcher(reg, 0)

	writeArgs, _ := json.Marshal(writeFileArgs{Path: "secrets/token.txt", Content: "nope"})
	results := d.Dispatch(context.Background(), []Call{{ID: "1", Name: "write_file", Arguments: writeArgs}})
	if !results[0].IsError {
		t.Fatal("expected write under a denied path to fail")
	}
}

func TestFileToolsRejectsPathOutsideAllowlist(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	RegisterFileTools(reg, dir, []string{"notes"}, nil)
	d := NewDispatcher(reg, 0)

	writeArgs, _ := json.Marshal(writeFileArgs{Path: "scratch/a.txt", Content: "hi"})
	results := d.Dispatch(context.Background(), []Call{{ID: "1", Name: "write_file", Arguments: writeArgs}})
	if !results[0].IsError {
		t.Fatal("expected write outside the allowlist to fail")
	}

	writeArgs, _ = json.Marshal(writeFileArgs{Path: "notes/a.txt", Content: "hi"})
	results = d.Dispatch(context.Background(), []Call{{ID: "2", Name: "write_file", Arguments: writeArgs}})
	if results[0].IsError {
		t.Fatalf("expected write inside the allowlist to succeed: %s", results[0].Content)
	}
}

func TestCheckScriptAllowedHonorsOverride(t *testing.T) {
	script := `tell application "Terminal" to do shell script "ls"`
	if err := CheckScriptAllowed(script); err == nil {
		t.Fatal("expected script to be denied without an override")
	}
	if err := CheckScriptAllowed(script, "do shell script"); err != nil {
		t.Fatalf("expected overridden pattern to be allowed: %v", err)
	}
}
