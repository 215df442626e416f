// Package convo implements the C5 Conversation State: an ordered message
// history with a system prompt pinned at index 0, turn/token-budget
// pruning, tool-call/tool-result pairing, and idle-session timeout.
//
// It generalizes the teacher's ConversationSession (pkg/orchestrator/types.go)
// from a flat chat log into the richer message shape a tool-calling loop
// needs: assistant turns may carry tool_calls, and each tool_call_id must be
// followed by exactly one tool-result message before the next user turn.
package convo

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the assistant.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// Message is one turn in the conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on RoleTool messages
	ToolName   string     `json:"tool_name,omitempty"`
}

// estimateTokens applies spec's word-count heuristic: tokens ~= words * 1.3.
func estimateTokens(m Message) int {
	words := len(strings.Fields(m.Content))
	for _, tc := range m.ToolCalls {
		words += len(strings.Fields(tc.Name)) + len(strings.Fields(tc.Arguments))
	}
	return int(float64(words)*1.3) + 1
}

// Config bounds a State's retained history.
type Config struct {
	MaxTurns       int           // max user+assistant turn pairs retained; default 20
	MaxTokens      int           // token budget for Messages(); default 8000
	SessionTimeout time.Duration // idle duration after which Tick reports expired; default 1800s
}

func (c *Config) defaults() {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 20
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 8000
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 1800 * time.Second
	}
}

// State is a single conversation's message history. All methods are safe
// for concurrent use; callers performing multi-step updates (as the
// pipeline executor does for the duration of one request) should hold an
// external write-lease rather than relying on per-call atomicity.
type State struct {
	mu  sync.RWMutex
	cfg Config

	sessionID  string
	messages   []Message // messages[0] is the system message, if any
	hasSystem  bool
	lastActive time.Time
}

// New creates an empty State. If systemPrompt is non-empty it becomes the
// permanent index-0 message, exempt from all pruning. The State is stamped
// with a fresh session ID (spec.md's StatusSummary/get_status session
// identity), retained for the process lifetime since sessions don't
// persist across restarts.
func New(cfg Config, systemPrompt string) *State {
	cfg.defaults()
	s := &State{cfg: cfg, lastActive: time.Time{}, sessionID: uuid.NewString()}
	if systemPrompt != "" {
		s.messages = append(s.messages, Message{Role: RoleSystem, Content: systemPrompt})
		s.hasSystem = true
	}
	return s
}

// SessionID returns the identifier stamped on this State at New.
func (s *State) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// AddUser appends a user turn.
func (s *State) AddUser(now time.Time, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: RoleUser, Content: content})
	s.lastActive = now
	s.prune()
}

// AddAssistant appends an assistant turn, optionally carrying tool calls
// that must each be answered by a subsequent AddToolResult before the next
// AddUser call.
func (s *State) AddAssistant(now time.Time, content string, toolCalls []ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls})
	s.lastActive = now
	s.prune()
}

// AddToolResult appends the result of one tool call. callID must match a
// tool_call_id emitted by the most recent AddAssistant call that has not
// yet been answered.
func (s *State) AddToolResult(now time.Time, callID, toolName, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: toolName})
	s.lastActive = now
	s.prune()
}

// Messages returns a defensive copy of the current, pruned history in
// chronological order, system message first if present.
func (s *State) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear drops all history except the pinned system message, if any.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSystem {
		s.messages = s.messages[:1]
	} else {
		s.messages = s.messages[:0]
	}
}

// Tick reports whether the session has been idle for longer than the
// configured SessionTimeout as of now. Callers should react by treating
// the session as expired (e.g. clearing it) — Tick itself does not mutate.
func (s *State) Tick(now time.Time) (expired bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastActive.IsZero() {
		return false
	}
	return now.Sub(s.lastActive) > s.cfg.SessionTimeout
}

// prune enforces MAX_TURNS then the token budget. Must be called with
// s.mu held. The system message at index 0 is never dropped. Pruning
// respects the tool-result-pairing invariant: an assistant message with
// pending tool_calls is dropped only together with all of its paired
// tool-result messages, never split.
func (s *State) prune() {
	s.pruneByTurns()
	s.pruneByTokens()
}

func (s *State) pruneByTurns() {
	base := 0
	if s.hasSystem {
		base = 1
	}
	turns := countUserTurns(s.messages[base:])
	for turns > s.cfg.MaxTurns {
		dropped := s.dropOldestGroup(base)
		if !dropped {
			return
		}
		turns = countUserTurns(s.messages[base:])
	}
}

func (s *State) pruneByTokens() {
	base := 0
	if s.hasSystem {
		base = 1
	}
	for s.totalTokens() > s.cfg.MaxTokens {
		if !s.dropOldestGroup(base) {
			return
		}
	}
}

func (s *State) totalTokens() int {
	total := 0
	for _, m := range s.messages {
		total += estimateTokens(m)
	}
	return total
}

// dropOldestGroup removes the oldest prunable message group starting at
// index base: a lone user message, or a user message plus its following
// assistant/tool-result run, whichever is found first. Returns false if
// nothing beyond base remains to drop.
func (s *State) dropOldestGroup(base int) bool {
	if len(s.messages) <= base {
		return false
	}
	end := base + 1
	for end < len(s.messages) && s.messages[end].Role != RoleUser {
		end++
	}
	s.messages = append(s.messages[:base], s.messages[end:]...)
	return true
}

func countUserTurns(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}
