package pipeline

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/corvidvoice/corvid/pkg/audio"
	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/metrics"
	"github.com/corvidvoice/corvid/pkg/providers/llm"
	"github.com/corvidvoice/corvid/pkg/providers/stt"
	"github.com/corvidvoice/corvid/pkg/providers/tts"
	"github.com/corvidvoice/corvid/pkg/recovery"
	"github.com/corvidvoice/corvid/pkg/tools"
)

func newState() *convo.State {
	return convo.New(convo.Config{}, "you are a test assistant")
}

func TestRunPlainAnswer(t *testing.T) {
	exec := &Executor{
		STT:     &stt.Mock{Text: "what time is it"},
		LLM:     &llm.Mock{Results: []llm.CompletionResult{{Text: "it is noon", FinishReason: "stop"}}},
		Tools:   tools.NewDispatcher(tools.NewRegistry(), 0),
		TTS:     &tts.Mock{},
		Metrics: metrics.New(),
	}

	state := newState()
	result := exec.Run(context.Background(), state, Utterance{PCM: []int16{1, 2, 3}, SampleRate: 16000})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Transcription != "what time is it" {
		t.Errorf("unexpected transcription: %q", result.Transcription)
	}
	if result.Response != "it is noon" {
		t.Errorf("unexpected response: %q", result.Response)
	}
}

func TestRunEmptyTranscriptionAbortsUtterance(t *testing.T) {
	exec := &Executor{
		STT:     &stt.Mock{Text: ""},
		LLM:     &llm.Mock{},
		Tools:   tools.NewDispatcher(tools.NewRegistry(), 0),
		TTS:     &tts.Mock{},
		Metrics: metrics.New(),
	}

	result := exec.Run(context.Background(), newState(), Utterance{PCM: []int16{1}, SampleRate: 16000})
	if result.Success {
		t.Fatalf("expected failure on empty transcription, got %+v", result)
	}
	if result.ErrorKind != "SttEmpty" {
		t.Errorf("expected SttEmpty, got %s", result.ErrorKind)
	}
}

func TestRunDispatchesToolCallThenAnswers(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.Definition{Name: "get_time", Description: "returns the time"}, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "3pm", nil
	})

	mockLLM := &llm.Mock{Results: []llm.CompletionResult{
		{
			ToolCalls:    []tools.Call{{ID: "call-1", Name: "get_time", Arguments: json.RawMessage(`{}`)}},
			FinishReason: "tool_calls",
		},
		{Text: "it is 3pm", FinishReason: "stop"},
	}}

	exec := &Executor{
		STT:      &stt.Mock{Text: "what time is it"},
		LLM:      mockLLM,
		Tools:    tools.NewDispatcher(reg, 0),
		ToolDefs: reg.List(),
		TTS:      &tts.Mock{},
		Metrics:  metrics.New(),
	}

	result := exec.Run(context.Background(), newState(), Utterance{PCM: []int16{1, 2}, SampleRate: 16000})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Response != "it is 3pm" {
		t.Errorf("unexpected response: %q", result.Response)
	}
}

func TestRunCancelledBeforeStartReturnsCancelled(t *testing.T) {
	exec := &Executor{
		STT:     &stt.Mock{Text: "hello"},
		LLM:     &llm.Mock{},
		Tools:   tools.NewDispatcher(tools.NewRegistry(), 0),
		TTS:     &tts.Mock{},
		Metrics: metrics.New(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := exec.Run(ctx, newState(), Utterance{PCM: []int16{1}, SampleRate: 16000})
	if !result.Cancelled {
		t.Errorf("expected cancelled result, got %+v", result)
	}
}

func TestRunTTSFailureStillReturnsSuccess(t *testing.T) {
	exec := &Executor{
		STT:     &stt.Mock{Text: "hello"},
		LLM:     &llm.Mock{Results: []llm.CompletionResult{{Text: "hi there", FinishReason: "stop"}}},
		Tools:   tools.NewDispatcher(tools.NewRegistry(), 0),
		TTS:     &tts.Mock{Outcome: tts.OutcomeFailed},
		Metrics: metrics.New(),
	}

	result := exec.Run(context.Background(), newState(), Utterance{PCM: []int16{1}, SampleRate: 16000})
	if !result.Success {
		t.Fatalf("expected success despite tts failure, got %+v", result)
	}

	snap := exec.Metrics.Snapshot()[metrics.StageTTS]
	if snap.ErrorSeen != 1 {
		t.Errorf("expected one tts error recorded, got %d", snap.ErrorSeen)
	}
}

func TestRunOpensLLMBreakerAfterRepeatedFailures(t *testing.T) {
	breaker := recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{MaxFailures: 1})
	exec := &Executor{
		STT:        &stt.Mock{Text: "hello"},
		LLM:        &llm.Mock{Err: errors.New("boom")},
		Tools:      tools.NewDispatcher(tools.NewRegistry(), 0),
		TTS:        &tts.Mock{},
		Metrics:    metrics.New(),
		Cfg:        Config{LLMRetryMax: 1},
		LLMBreaker: breaker,
	}

	result := exec.Run(context.Background(), newState(), Utterance{PCM: []int16{1}, SampleRate: 16000})
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if breaker.State() != recovery.StateOpen {
		t.Fatalf("expected breaker to be open after exceeding MaxFailures, got %s", breaker.State())
	}

	// A second request should short-circuit through the open breaker
	// without the LLM mock's error path changing the outcome kind.
	result = exec.Run(context.Background(), newState(), Utterance{PCM: []int16{1}, SampleRate: 16000})
	if result.ErrorKind != recovery.LlmUnavailable {
		t.Errorf("expected LlmUnavailable once the breaker is open, got %s", result.ErrorKind)
	}
}

func TestPCM16ToBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	b := audio.PCM16ToBytes(samples)
	if len(b) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(b))
	}
	for i, s := range samples {
		if got := int16(binary.LittleEndian.Uint16(b[2*i:])); got != s {
			t.Errorf("sample %d: expected %d after decoding, got %d", i, s, got)
		}
	}
}
