// Package orchestrator implements the C10 Orchestrator: the top-level
// status FSM and lifecycle that wires C4's AudioEvents into C9's pipeline
// executor, enforces the single-PROCESSING-slot invariant, and exposes
// start/stop/interrupt to the control protocol. Grounded on the teacher's
// pkg/orchestrator/orchestrator.go construction/lifecycle shape, with the
// STT/LLM/TTS call sequencing itself moved into pkg/pipeline.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/corvidvoice/corvid/pkg/audiopipeline"
	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/metrics"
	"github.com/corvidvoice/corvid/pkg/pipeline"
)

// Orchestrator is the C10 implementation. One Orchestrator owns one
// conversation and one audio capture stream.
type Orchestrator struct {
	mu     sync.Mutex
	status Status
	cfg    Config

	audio    *audiopipeline.Pipeline
	devices  audiopipeline.DeviceFactory
	convo    *convo.State
	executor *pipeline.Executor
	metric   *metrics.Collector
	logger   Logger

	sessionStart time.Time
	events       chan Event

	runCancel  context.CancelFunc
	pipeCancel context.CancelFunc

	pendingUtt *audiopipeline.AudioEvent // at most one queued utterance
	captureErr chan error
	wg         sync.WaitGroup
}

// New constructs an Orchestrator in INITIALIZING status. Call Initialize
// then Start to bring it up.
func New(cfg Config, audio *audiopipeline.Pipeline, devices audiopipeline.DeviceFactory, state *convo.State, exec *pipeline.Executor, metric *metrics.Collector, logger Logger) *Orchestrator {
	cfg.defaults()
	if logger == nil {
		logger = NoOpLogger{}
	}

	o := &Orchestrator{
		status:     Initializing,
		cfg:        cfg,
		audio:      audio,
		devices:    devices,
		convo:      state,
		executor:   exec,
		metric:     metric,
		logger:     logger,
		events:     make(chan Event, 64),
		captureErr: make(chan error, 1),
	}
	exec.OnBeforeSpeak = func() {
		o.setStatus(Speaking)
		o.audio.SetSpeaking(true)
	}
	return o
}

// Events returns the channel of async status/result/error events C10
// pushes to the control protocol host.
func (o *Orchestrator) Events() <-chan Event { return o.events }

// Initialize transitions INITIALIZING -> IDLE. It performs no I/O itself;
// all components are expected to already be constructed by New's caller.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.setStatus(Idle)
	return nil
}

// Start transitions IDLE -> LISTENING and begins the capture loop and the
// AudioEvent consumer loop, both running until Stop or a fatal capture
// error.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.status != Idle {
		o.mu.Unlock()
		return nil
	}
	var runCtx context.Context
	runCtx, o.runCancel = context.WithCancel(ctx)
	o.mu.Unlock()

	o.setStatus(Listening)

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		if err := audiopipeline.Run(runCtx, o.devices, o.audio); err != nil {
			o.logger.Error("capture device failed fatally", "error", err)
			o.setStatus(ErrorStatus)
			select {
			case o.captureErr <- err:
			default:
			}
		}
	}()
	go func() {
		defer o.wg.Done()
		o.consumeEvents(runCtx)
	}()

	return nil
}

// Stop performs a best-effort graceful drain and transitions to STOPPED.
// Idempotent.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.status == Stopped {
		o.mu.Unlock()
		return nil
	}
	if o.runCancel != nil {
		o.runCancel()
	}
	if o.pipeCancel != nil {
		o.pipeCancel()
	}
	o.mu.Unlock()

	o.wg.Wait()
	o.setStatus(Stopped)
	close(o.events)
	return nil
}

// Cleanup releases resources. Idempotent; safe to call after Stop or
// instead of it.
func (o *Orchestrator) Cleanup() error {
	return o.Stop()
}

// Interrupt cancels any in-flight pipeline request and stops active TTS,
// returning to LISTENING if the orchestrator was PROCESSING or SPEAKING.
func (o *Orchestrator) Interrupt() {
	o.mu.Lock()
	wasActive := o.status == Processing || o.status == Speaking
	if o.pipeCancel != nil {
		o.pipeCancel()
	}
	o.mu.Unlock()

	if wasActive {
		o.setStatus(Listening)
	}
}

// ClearConversation implements the clear_conversation control command.
func (o *Orchestrator) ClearConversation() {
	o.convo.Clear()
}

// GetStatus implements the get_status control command.
func (o *Orchestrator) GetStatus() StatusSummary {
	o.mu.Lock()
	status := o.status
	age := time.Since(o.sessionStart)
	o.mu.Unlock()
	return StatusSummary{
		Status:        status,
		SessionID:     o.convo.SessionID(),
		MessageCount:  len(o.convo.Messages()),
		SessionAgeSec: int64(age.Seconds()),
	}
}

// GetMetrics implements the get_metrics control command.
func (o *Orchestrator) GetMetrics() map[metrics.Stage]metrics.StageSnapshot {
	return o.metric.Snapshot()
}

// TriggerHotkey implements the trigger_hotkey control command, injecting
// a synthetic Hotkey AudioEvent into C4.
func (o *Orchestrator) TriggerHotkey() {
	o.audio.TriggerHotkey()
}

// Status returns the current FSM state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// setStatus applies a legal transition and emits the status event before
// any caller-visible side effect that depends on the new state (spec.md
// §4.10's ordering invariant) — callers must call setStatus first, then
// perform whatever follows.
func (o *Orchestrator) setStatus(to Status) {
	o.mu.Lock()
	from := o.status
	if !transitionAllowed(from, to) {
		o.mu.Unlock()
		o.logger.Warn("ignoring illegal status transition", "from", from, "to", to)
		return
	}
	o.status = to
	if to == Listening && o.sessionStart.IsZero() {
		o.sessionStart = time.Now()
	}
	o.mu.Unlock()

	o.emit(Event{Type: EventStatusUpdate, Status: to, Timestamp: time.Now().Unix()})
}

// consumeEvents is the AudioEvent -> pipeline dispatch loop. Only one
// pipeline request runs at a time; arrivals while PROCESSING/SPEAKING are
// governed by cfg.BackpressurePolicy.
func (o *Orchestrator) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.audio.Events():
			if !ok {
				return
			}
			o.handleAudioEvent(ctx, ev)
		}
	}
}

func (o *Orchestrator) handleAudioEvent(ctx context.Context, ev audiopipeline.AudioEvent) {
	switch ev.Kind {
	case audiopipeline.EventWakeWord:
		o.emit(Event{Type: EventWakeWordDetected, Timestamp: time.Now().Unix()})
	case audiopipeline.EventHotkey:
		// No dedicated event kind; the status_update that follows the
		// resulting utterance is sufficient signal to the host.
	case audiopipeline.EventUtteranceReady:
		o.dispatchUtterance(ctx, ev)
	}
}

// dispatchUtterance applies the single-PROCESSING-slot invariant and the
// configured backpressure policy before running the pipeline.
func (o *Orchestrator) dispatchUtterance(ctx context.Context, ev audiopipeline.AudioEvent) {
	o.mu.Lock()
	busy := o.status == Processing || o.status == Speaking
	if busy {
		switch o.cfg.BackpressurePolicy {
		case PolicyDropOldest:
			o.pendingUtt = &ev
		case PolicyCoalesce:
			if o.pendingUtt == nil {
				o.pendingUtt = &ev
			}
		default: // drop_newest
		}
		o.mu.Unlock()
		o.logger.Warn("utterance arrived while busy, applying backpressure policy", "policy", o.cfg.BackpressurePolicy)
		o.metric.RecordError(ctx, metrics.StageWake, "UtteranceDroppedBackpressure", string(o.cfg.BackpressurePolicy), time.Now())
		return
	}
	pipeCtx, cancel := context.WithCancel(ctx)
	o.pipeCancel = cancel
	o.mu.Unlock()

	o.runPipeline(pipeCtx, ev)

	o.mu.Lock()
	queued := o.pendingUtt
	o.pendingUtt = nil
	o.mu.Unlock()
	if queued != nil {
		o.dispatchUtterance(ctx, *queued)
	}
}

func (o *Orchestrator) runPipeline(ctx context.Context, ev audiopipeline.AudioEvent) {
	o.setStatus(Processing)

	result := o.executor.Run(ctx, o.convo, pipeline.Utterance{PCM: ev.PCM, SampleRate: o.audio.SampleRate()})
	o.audio.SetSpeaking(false)

	o.mu.Lock()
	o.pipeCancel = nil
	o.mu.Unlock()

	if result.Cancelled {
		o.setStatus(Listening)
		return
	}

	if !result.Success {
		o.emit(Event{
			Type:      EventError,
			Kind:      string(result.ErrorKind),
			Message:   "pipeline request did not complete successfully",
			Timestamp: time.Now().Unix(),
		})
		o.setStatus(Listening)
		return
	}

	var totalMs int64
	for _, d := range result.Durations {
		totalMs += d.Milliseconds()
	}

	if o.cfg.AutoRelisten {
		o.setStatus(Listening)
	} else {
		o.setStatus(Idle)
	}

	o.emit(Event{
		Type:          EventProcessingComplete,
		Success:       true,
		Transcription: result.Transcription,
		Response:      result.Response,
		DurationMs:    totalMs,
		Timestamp:     time.Now().Unix(),
	})
}

// emit delivers ev to the async events channel, dropping it if the host
// isn't draining fast enough rather than blocking the FSM.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.logger.Warn("orchestrator event channel full, dropping event", "type", ev.Type)
	}
}
