package orchestrator

// Logger is the minimal logging seam this package depends on, matching
// pkg/recovery's Logger interface so one implementation can be threaded
// through both packages.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything; the default when no Logger is supplied.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{}) {}
func (NoOpLogger) Info(string, ...interface{})  {}
func (NoOpLogger) Warn(string, ...interface{})  {}
func (NoOpLogger) Error(string, ...interface{}) {}

// Status is the C10 FSM state, per spec.md §4.10.
type Status string

const (
	Initializing Status = "initializing"
	Idle         Status = "idle"
	Listening    Status = "listening"
	Processing   Status = "processing"
	Speaking     Status = "speaking"
	ErrorStatus  Status = "error"
	Stopped      Status = "stopped"
)

// validTransitions encodes the FSM's edges. "any" sources (error, stop) are
// checked separately in transitionAllowed.
var validTransitions = map[Status]map[Status]bool{
	Initializing: {Idle: true},
	Idle:         {Listening: true},
	Listening:    {Processing: true},
	Processing:   {Speaking: true, Idle: true, Listening: true},
	Speaking:     {Idle: true, Listening: true},
	ErrorStatus:  {Idle: true},
}

// transitionAllowed reports whether from->to is a legal edge. error and
// stop are reachable from any state, matching the FSM's "any" sources.
func transitionAllowed(from, to Status) bool {
	if to == ErrorStatus || to == Stopped {
		return true
	}
	return validTransitions[from][to]
}

// EventType discriminates the async lines C10 pushes to the control
// protocol host (spec.md §6).
type EventType string

const (
	EventStatusUpdate       EventType = "status_update"
	EventWakeWordDetected   EventType = "wake_word_detected"
	EventProcessingComplete EventType = "processing_complete"
	EventError              EventType = "error"
)

// Event is one async push line's payload, serialized by pkg/protocol.
type Event struct {
	Type          EventType `json:"type"`
	Status        Status    `json:"status,omitempty"`
	Success       bool      `json:"success,omitempty"`
	Transcription string    `json:"transcription,omitempty"`
	Response      string    `json:"response,omitempty"`
	DurationMs    int64     `json:"duration_ms,omitempty"`
	Kind          string    `json:"kind,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     int64     `json:"ts"`
}

// BackpressurePolicy governs what happens when an utterance completes (or
// a new one arrives) while C10 is already PROCESSING one, per spec.md §5's
// event-channel overflow rule and §6's pipeline.backpressure_policy key.
type BackpressurePolicy string

const (
	PolicyCoalesce   BackpressurePolicy = "coalesce"
	PolicyDropNewest BackpressurePolicy = "drop_newest"
	PolicyDropOldest BackpressurePolicy = "drop_oldest"
)

// Config is C10's own construction-time configuration, layered over the
// per-component configs (audiopipeline.Config, pipeline.Config,
// convo.Config) owned by pkg/config.Config.
type Config struct {
	AutoRelisten       bool
	BackpressurePolicy BackpressurePolicy
}

func (c *Config) defaults() {
	if c.BackpressurePolicy == "" {
		c.BackpressurePolicy = PolicyDropNewest
	}
}

// StatusSummary answers the get_status control command.
type StatusSummary struct {
	Status        Status `json:"status"`
	SessionID     string `json:"session_id"`
	MessageCount  int    `json:"message_count"`
	SessionAgeSec int64  `json:"session_age_seconds"`
}
