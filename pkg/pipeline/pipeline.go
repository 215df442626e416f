// Package pipeline implements the C9 Pipeline Executor: the
// Transcribe -> tool-calling fixed point -> Speak algorithm that turns one
// UtteranceReady event into a PipelineResult, per spec.md §4.9.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/corvidvoice/corvid/pkg/audio"
	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/metrics"
	"github.com/corvidvoice/corvid/pkg/providers/llm"
	"github.com/corvidvoice/corvid/pkg/providers/stt"
	"github.com/corvidvoice/corvid/pkg/providers/tts"
	"github.com/corvidvoice/corvid/pkg/recovery"
	"github.com/corvidvoice/corvid/pkg/tools"
)

// Utterance is C4's output: one contiguous span of captured user speech.
type Utterance struct {
	PCM        []int16
	SampleRate int
}

// Result is C9's output, emitted once per pipeline request.
type Result struct {
	Success       bool
	Recovered     bool
	Cancelled     bool
	ErrorKind     recovery.ErrorKind
	Transcription string
	Response      string
	Durations     map[metrics.Stage]time.Duration
}

// Config bounds the tool-calling fixed point and the LLM retry count
// (spec.md §6 pipeline.*). It carries no per-stage timeouts: STT, LLM and
// TTS calls run under the caller's ctx only.
type Config struct {
	MaxToolIterations int
	LLMRetryMax       int
	SttMinConfidence  float64
	Language          string
	Voice             tts.Options
}

func (c *Config) defaults() {
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = 5
	}
	if c.LLMRetryMax <= 0 {
		c.LLMRetryMax = 3
	}
	if c.SttMinConfidence <= 0 {
		c.SttMinConfidence = 0.5
	}
}

// Executor runs one utterance through STT, the LLM/tool fixed point, and
// TTS against a shared conversation state and tool registry. Only one
// Run may be in flight per State at a time; the orchestrator's
// single-PROCESSING-slot invariant (spec.md §4.10) is what guarantees
// that, not a lock inside Executor itself.
type Executor struct {
	STT      stt.Provider
	LLM      llm.Provider
	Fallback llm.Provider // optional, used only after LLM retries are exhausted
	Tools    *tools.Dispatcher
	ToolDefs []tools.Definition
	TTS      tts.Provider
	Metrics  *metrics.Collector
	Cfg      Config
	Logger   recovery.Logger

	// STTBreaker/LLMBreaker/TTSBreaker, if set, guard the matching provider
	// call so a provider stuck failing short-circuits to ErrCircuitOpen
	// instead of paying the full retry cost on every subsequent request.
	// Nil is a valid no-breaker default for any of the three.
	STTBreaker *recovery.CircuitBreaker
	LLMBreaker *recovery.CircuitBreaker
	TTSBreaker *recovery.CircuitBreaker

	// OnBeforeSpeak, if set, is called immediately before the TTS step
	// starts — the orchestrator's hook for entering SPEAKING status at
	// the right moment in the C9 sequence (spec.md's "status transitions
	// emit an event before any side effect that depends on the new
	// state" ordering requirement).
	OnBeforeSpeak func()
}

// Run executes the full C9 algorithm. ctx cancellation is the cancel
// signal checked at every step boundary (spec.md's cancel_signal).
func (e *Executor) Run(ctx context.Context, state *convo.State, utt Utterance) Result {
	e.Cfg.defaults()
	if e.Logger == nil {
		e.Logger = recovery.NoOpLogger{}
	}
	durations := map[metrics.Stage]time.Duration{}
	e2eStop := e.timeStage(ctx, metrics.StageEndToEnd)
	var finalErr error
	defer func() { e2eStop(finalErr, "") }()

	if ctx.Err() != nil {
		return Result{Cancelled: true, ErrorKind: recovery.Cancelled, Durations: durations}
	}

	// 1. Transcribe.
	sttStart := time.Now()
	text, err := e.transcribe(ctx, utt)
	durations[metrics.StageSTT] = time.Since(sttStart)
	if err != nil {
		finalErr = err
		kind, _ := recovery.KindOf(err)
		e.RecordError(ctx, metrics.StageSTT, kind, err)
		return e.sttFailureResult(kind, durations)
	}
	if ctx.Err() != nil {
		return Result{Cancelled: true, ErrorKind: recovery.Cancelled, Durations: durations}
	}

	// 2. Append user turn.
	state.AddUser(time.Now(), text)

	// 3. Tool-calling fixed point.
	response, toolErr := e.toolLoop(ctx, state, durations)
	if toolErr != nil {
		finalErr = toolErr
		kind, _ := recovery.KindOf(toolErr)
		if kind == recovery.Cancelled {
			return Result{Cancelled: true, Transcription: text, ErrorKind: kind, Durations: durations}
		}
		e.RecordError(ctx, metrics.StageLLM, kind, toolErr)
		return Result{Success: false, Recovered: true, Transcription: text, ErrorKind: kind, Durations: durations}
	}

	// 5. Speak, unless cancelled.
	if ctx.Err() == nil {
		if e.OnBeforeSpeak != nil {
			e.OnBeforeSpeak()
		}
		ttsStart := time.Now()
		var outcome tts.Outcome
		ttsErr := breakerExecute(e.TTSBreaker, func() error {
			var err error
			outcome, err = e.TTS.Speak(ctx, response, e.Cfg.Voice)
			return err
		})
		durations[metrics.StageTTS] = time.Since(ttsStart)
		if ttsErr != nil {
			e.Logger.Warn("tts failed, continuing with text-only result", "error", ttsErr)
			e.RecordError(ctx, metrics.StageTTS, recovery.TtsFailed, ttsErr)
		} else if outcome == tts.OutcomeFailed {
			e.RecordError(ctx, metrics.StageTTS, recovery.TtsFailed, fmt.Errorf("tts reported failure"))
		}
	}

	return Result{
		Success:       true,
		Transcription: text,
		Response:      response,
		Durations:     durations,
	}
}

func (e *Executor) transcribe(ctx context.Context, utt Utterance) (string, error) {
	pcm := audio.PCM16ToBytes(utt.PCM)
	var text string
	err := breakerExecute(e.STTBreaker, func() error {
		var sttErr error
		text, sttErr = e.STT.Transcribe(ctx, pcm, utt.SampleRate, e.Cfg.Language)
		return sttErr
	})
	if err != nil {
		return "", recovery.Wrap(recovery.SttEmpty, err)
	}
	if text == "" {
		return "", recovery.Wrap(recovery.SttEmpty, fmt.Errorf("empty transcription"))
	}
	return text, nil
}

// breakerExecute runs fn directly when cb is nil, so every call site stays
// correct whether or not a breaker is configured for that provider.
func breakerExecute(cb *recovery.CircuitBreaker, fn func() error) error {
	if cb == nil {
		return fn()
	}
	return cb.Execute(fn)
}

func (e *Executor) sttFailureResult(kind recovery.ErrorKind, durations map[metrics.Stage]time.Duration) Result {
	return Result{
		Success:   false,
		Recovered: true,
		ErrorKind: kind,
		Durations: durations,
	}
}

// toolLoop runs step 3 of §4.9: repeatedly ask the LLM for a completion,
// dispatch any tool_calls, and append results, until the LLM answers with
// no further tool_calls or the iteration cap forces a final call.
func (e *Executor) toolLoop(ctx context.Context, state *convo.State, durations map[metrics.Stage]time.Duration) (string, error) {
	appendedFinal := false
	var lastText string

	for i := 0; i < e.Cfg.MaxToolIterations; i++ {
		if ctx.Err() != nil {
			return "", recovery.Wrap(recovery.Cancelled, ctx.Err())
		}

		availableTools := e.ToolDefs
		completion, err := e.completeWithRetry(ctx, state, availableTools, durations)
		if err != nil {
			return "", err
		}
		lastText = completion.Text

		if len(completion.ToolCalls) == 0 {
			state.AddAssistant(time.Now(), completion.Text, nil)
			return completion.Text, nil
		}

		toolCalls := make([]convo.ToolCall, len(completion.ToolCalls))
		for j, tc := range completion.ToolCalls {
			toolCalls[j] = convo.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: string(tc.Arguments)}
		}
		state.AddAssistant(time.Now(), completion.Text, toolCalls)
		appendedFinal = false

		toolStart := time.Now()
		results := e.Tools.Dispatch(ctx, completion.ToolCalls)
		durations[metrics.StageTool] += time.Since(toolStart)
		for _, r := range results {
			state.AddToolResult(time.Now(), r.ID, r.Name, r.Content)
		}

		if ctx.Err() != nil {
			return "", recovery.Wrap(recovery.Cancelled, ctx.Err())
		}
	}

	// Iteration cap reached: force one more call with tools disabled.
	completion, err := e.completeWithRetry(ctx, state, nil, durations)
	if err != nil {
		return "", err
	}
	if !appendedFinal {
		state.AddAssistant(time.Now(), completion.Text, nil)
	}
	lastText = completion.Text
	return lastText, nil
}

// completeWithRetry wraps one LLM call with spec.md §4.7's
// LlmTimeout/LlmUnavailable retry policy, falling back to e.Fallback for
// this request only if the primary exhausts its retries.
func (e *Executor) completeWithRetry(ctx context.Context, state *convo.State, defs []tools.Definition, durations map[metrics.Stage]time.Duration) (llm.CompletionResult, error) {
	req := llm.CompletionRequest{Messages: state.Messages(), Tools: defs}

	llmStart := time.Now()
	var result llm.CompletionResult
	backoffCfg := recovery.BackoffConfig{MaxRetries: e.Cfg.LLMRetryMax}
	callErr := recovery.Retry(ctx, backoffCfg, func(ctx context.Context) error {
		err := breakerExecute(e.LLMBreaker, func() error {
			var callErr error
			result, callErr = e.LLM.Complete(ctx, req)
			return callErr
		})
		if err != nil {
			kind := recovery.LlmTimeout
			if err == recovery.ErrCircuitOpen {
				kind = recovery.LlmUnavailable
			}
			e.RecordError(ctx, metrics.StageLLM, kind, err)
			return recovery.Wrap(kind, err)
		}
		return nil
	})
	durations[metrics.StageLLM] += time.Since(llmStart)

	if callErr != nil {
		if e.Fallback != nil {
			result, err := e.Fallback.Complete(ctx, req)
			if err == nil {
				return result, nil
			}
			return llm.CompletionResult{}, recovery.Wrap(recovery.LlmUnavailable, err)
		}
		return llm.CompletionResult{}, callErr
	}
	return result, nil
}

// RecordError routes a stage failure to the metrics collector when one is
// attached.
func (e *Executor) RecordError(ctx context.Context, stage metrics.Stage, kind recovery.ErrorKind, err error) {
	if e.Metrics == nil {
		return
	}
	e.Metrics.RecordError(ctx, stage, string(kind), err.Error(), time.Now())
}

func (e *Executor) timeStage(ctx context.Context, stage metrics.Stage) func(err error, kind string) {
	if e.Metrics == nil {
		return func(error, string) {}
	}
	return e.Metrics.Timer(ctx, stage)
}
