package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

type executeScriptArgs struct {
	Script    string `json:"script"`
	Confirmed bool   `json:"confirmed"`
	SilentOK  bool   `json:"silent_ok"`
}

// RegisterScriptTool registers execute_script, the scenario S2
// AppleScript-equivalent tool, running osascript via interpreter (defaults
// to "osascript" — tests override it to a fake binary). Every script is
// checked against the deny-list and the confirmation gate before exec.
// allowedSubstrings (config.Tools.AllowDangerousSubstrings) exempts specific
// deny-list patterns an operator has explicitly accepted the risk of.
func RegisterScriptTool(reg *Registry, interpreter string, allowedSubstrings ...string) {
	if interpreter == "" {
		interpreter = "osascript"
	}
	def := Definition{
		Name:        "execute_script",
		Description: "Runs a short AppleScript-equivalent automation script.",
		Parameters: map[string]ParamSchema{
			"script": {Type: "string", MaxLength: 4096},
		},
		Required:             []string{"script"},
		ParallelSafe:         false,
		RequiresConfirmation: true,
	}
	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args executeScriptArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("execute_script: invalid arguments: %w", err)
		}
		if err := CheckScriptAllowed(args.Script, allowedSubstrings...); err != nil {
			return "", err
		}
		if err := CheckConfirmation(def, ConfirmationArgs{Confirmed: args.Confirmed, SilentOK: args.SilentOK}, false); err != nil {
			return "", err
		}

		cmd := exec.CommandContext(ctx, interpreter, "-e", args.Script)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("execute_script: %w", err)
		}
		return out.String(), nil
	}
	reg.Register(def, handler)
}
