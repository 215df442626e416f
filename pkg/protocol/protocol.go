// Package protocol implements the line-delimited JSON control protocol
// between C10 and an external UI host (spec.md §6): one JSON command per
// line in, one JSON reply or async STATUS/EVENT line out. Grounded on
// longregen-alicia's internal/adapters/mcp/transport.go stdio read loop
// (bufio.Scanner over a line-delimited JSON stream, buffer pre-sized for
// oversized messages).
package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/corvidvoice/corvid/pkg/orchestrator"
)

// Command is one inbound control-protocol line.
type Command struct {
	Command string `json:"command"`
}

// Reply is a command's synchronous response, written as one JSON line:
// { "response": "<cmd>", "ok": true/false, ... payload }.
type Reply struct {
	Response string      `json:"response"`
	OK       bool        `json:"ok"`
	Error    string      `json:"error,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

const maxLineSize = 1024 * 1024

// Handler dispatches control commands to an Orchestrator and serializes
// its async Event stream, both onto out. Serve drives the command loop;
// RunEvents drives the async push loop. Both may run concurrently since
// writes are serialized by mu.
type Handler struct {
	orch *orchestrator.Orchestrator
	out  io.Writer
	mu   sync.Mutex
}

// New creates a Handler writing replies and async events to out.
func New(orch *orchestrator.Orchestrator, out io.Writer) *Handler {
	return &Handler{orch: orch, out: out}
}

// Serve reads one JSON command per line from in until EOF or ctx-driven
// shutdown via a closed reader, dispatching each to the Orchestrator and
// writing a Reply line. It returns when in is exhausted or a scan error
// occurs.
func (h *Handler) Serve(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		h.handleLine(append([]byte{}, line...))
	}
	return scanner.Err()
}

func (h *Handler) handleLine(line []byte) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		h.writeReply(Reply{Response: "unknown", OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	switch cmd.Command {
	case "start":
		err := h.orch.Start(context.Background())
		h.writeReply(Reply{Response: cmd.Command, OK: err == nil, Error: errString(err)})
	case "stop":
		err := h.orch.Stop()
		h.writeReply(Reply{Response: cmd.Command, OK: err == nil, Error: errString(err)})
	case "interrupt":
		h.orch.Interrupt()
		h.writeReply(Reply{Response: cmd.Command, OK: true})
	case "clear_conversation":
		h.orch.ClearConversation()
		h.writeReply(Reply{Response: cmd.Command, OK: true})
	case "get_status":
		h.writeReply(Reply{Response: cmd.Command, OK: true, Payload: h.orch.GetStatus()})
	case "get_metrics":
		h.writeReply(Reply{Response: cmd.Command, OK: true, Payload: h.orch.GetMetrics()})
	case "trigger_hotkey":
		h.orch.TriggerHotkey()
		h.writeReply(Reply{Response: cmd.Command, OK: true})
	default:
		h.writeReply(Reply{Response: cmd.Command, OK: false, Error: "unrecognized command"})
	}
}

// RunEvents drains the Orchestrator's async Event channel, writing each as
// a prefixed STATUS/EVENT line, until the channel is closed. Meant to run
// in its own goroutine alongside Serve.
func (h *Handler) RunEvents() {
	for ev := range h.orch.Events() {
		prefix := "EVENT "
		if ev.Type == orchestrator.EventStatusUpdate {
			prefix = "STATUS "
		}
		b, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		h.writeLine(prefix + string(b))
	}
}

func (h *Handler) writeReply(r Reply) {
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	h.writeLine(string(b))
}

func (h *Handler) writeLine(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, line)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
