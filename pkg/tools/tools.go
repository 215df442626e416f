// Package tools implements the C8 Tool Registry & Dispatcher: a registry
// of JSON-Schema-described tools, argument validation, and an invocation
// dispatcher that runs tool_calls in declaration order (serially unless a
// tool opts into parallel_safe execution), enforcing per-invocation
// timeouts and sandbox path restrictions.
//
// The Tool shape and the read_file/write_file sandboxing pattern are
// adapted from MrWong99-glyphoxa's internal/mcp/tools package.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ParamSchema is a (deliberately small) JSON-Schema-like description of one
// parameter, sufficient for the validation this dispatcher performs.
type ParamSchema struct {
	Type      string   `json:"type"` // "string", "number", "boolean", "object", "array"
	Enum      []string `json:"enum,omitempty"`
	MaxLength int      `json:"max_length,omitempty"` // 0 = unbounded, applies to "string"
}

// Definition is a tool's LLM-facing schema.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]ParamSchema `json:"parameters"`
	Required    []string               `json:"required"`

	// ParallelSafe marks the tool as safe to execute concurrently with
	// other parallel_safe tool calls within the same round.
	ParallelSafe bool `json:"-"`

	// RequiresConfirmation gates outbound-send-style tools (e.g. send a
	// message, post a request) behind an explicit confirmed=true call
	// argument unless SilentOK is also set by the caller's context.
	RequiresConfirmation bool `json:"-"`
}

// Call is one tool invocation requested by the assistant.
type Call struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Result is the outcome of one Call.
type Result struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// Handler executes a validated tool call and returns JSON-encodable
// content, or an error. Implementations must respect ctx cancellation.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// entry pairs a Definition with its Handler.
type entry struct {
	def     Definition
	handler Handler
}

// Registry holds the set of tools available to the dispatcher.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. Registering a name twice overwrites the prior entry.
func (r *Registry) Register(def Definition, h Handler) {
	r.entries[def.Name] = entry{def: def, handler: h}
}

// List returns tool definitions in a stable, name-sorted order — the shape
// sent to the LLM provider as available tools.
func (r *Registry) List() []Definition {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Definition, len(names))
	for i, n := range names {
		out[i] = r.entries[n].def
	}
	return out
}

// ValidationError reports why a Call failed schema validation; it is
// reported to the LLM as a tool result rather than surfaced as a
// recovery-level error, per spec.md §4.8.
type ValidationError struct {
	Call   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.Call, e.Reason)
}

// Validate checks call against the tool's declared schema: that the tool
// exists, required arguments are present, and present arguments satisfy
// their declared type/enum/length constraints.
func (r *Registry) Validate(call Call) error {
	e, ok := r.entries[call.Name]
	if !ok {
		return &ValidationError{Call: call.Name, Reason: "unknown tool"}
	}

	var args map[string]json.RawMessage
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return &ValidationError{Call: call.Name, Reason: "arguments are not a JSON object"}
		}
	}

	for _, req := range e.def.Required {
		if _, present := args[req]; !present {
			return &ValidationError{Call: call.Name, Reason: fmt.Sprintf("missing required argument %q", req)}
		}
	}

	for name, raw := range args {
		schema, declared := e.def.Parameters[name]
		if !declared {
			continue
		}
		if err := validateValue(name, schema, raw); err != nil {
			return &ValidationError{Call: call.Name, Reason: err.Error()}
		}
	}
	return nil
}

func validateValue(name string, schema ParamSchema, raw json.RawMessage) error {
	switch schema.Type {
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("argument %q must be a string", name)
		}
		if schema.MaxLength > 0 && len(s) > schema.MaxLength {
			return fmt.Errorf("argument %q exceeds max length %d", name, schema.MaxLength)
		}
		if len(schema.Enum) > 0 && !contains(schema.Enum, s) {
			return fmt.Errorf("argument %q must be one of %v", name, schema.Enum)
		}
	case "number":
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("argument %q must be a number", name)
		}
	case "boolean":
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// DefaultTimeout is the per-invocation timeout applied when none is set
// on the dispatcher.
const DefaultTimeout = 30 * time.Second

// Dispatcher runs a batch of tool_calls against a Registry.
type Dispatcher struct {
	reg     *Registry
	timeout time.Duration
}

// NewDispatcher creates a Dispatcher. timeout <= 0 uses DefaultTimeout.
func NewDispatcher(reg *Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{reg: reg, timeout: timeout}
}

// Dispatch executes calls and returns their results in the same order
// calls were declared. Calls marked ParallelSafe in their registered
// Definition run concurrently with each other; all others run serially,
// each blocking the next call's start. Either way, every result is joined
// before Dispatch returns — the next LLM round never starts early.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []Call) []Result {
	for i, c := range calls {
		if c.ID == "" {
			calls[i].ID = uuid.NewString()
		}
	}

	results := make([]Result, len(calls))

	// Partition indices into parallel-safe and serial groups while
	// preserving original order for the final assembly.
	var parallelIdx, serialIdx []int
	for i, c := range calls {
		if e, ok := d.reg.entries[c.Name]; ok && e.def.ParallelSafe {
			parallelIdx = append(parallelIdx, i)
		} else {
			serialIdx = append(serialIdx, i)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if len(parallelIdx) == 0 {
			return
		}
		ch := make(chan struct{}, len(parallelIdx))
		for _, i := range parallelIdx {
			go func(i int) {
				defer func() { ch <- struct{}{} }()
				results[i] = d.invoke(ctx, calls[i])
			}(i)
		}
		for range parallelIdx {
			<-ch
		}
	}()
	<-done

	for _, i := range serialIdx {
		results[i] = d.invoke(ctx, calls[i])
	}

	return results
}

func (d *Dispatcher) invoke(ctx context.Context, call Call) Result {
	if err := d.reg.Validate(call); err != nil {
		return Result{ID: call.ID, Name: call.Name, Content: err.Error(), IsError: true}
	}

	e := d.reg.entries[call.Name]
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	content, err := e.handler(callCtx, call.Arguments)
	if err != nil {
		return Result{ID: call.ID, Name: call.Name, Content: err.Error(), IsError: true}
	}
	return Result{ID: call.ID, Name: call.Name, Content: content}
}
