package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/corvidvoice/corvid/pkg/audiopipeline"
	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/metrics"
	"github.com/corvidvoice/corvid/pkg/orchestrator"
	"github.com/corvidvoice/corvid/pkg/pipeline"
	"github.com/corvidvoice/corvid/pkg/providers/llm"
	"github.com/corvidvoice/corvid/pkg/providers/stt"
	"github.com/corvidvoice/corvid/pkg/providers/tts"
	"github.com/corvidvoice/corvid/pkg/ringbuffer"
	"github.com/corvidvoice/corvid/pkg/tools"
	"github.com/corvidvoice/corvid/pkg/vad"
	"github.com/corvidvoice/corvid/pkg/wakeword"
)

type blockingDevice struct{}

func (blockingDevice) Read(ctx context.Context) ([]int16, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingDevice) Channels() int { return 1 }
func (blockingDevice) Close() error  { return nil }

func newTestOrchestrator() *orchestrator.Orchestrator {
	ring := ringbuffer.New(16000 * 3)
	wake := wakeword.NewMock(wakeword.MockConfig{Every: 1_000_000})
	vd := vad.New(vad.Config{SampleRate: 16000})
	m := metrics.New()
	audio := audiopipeline.New(audiopipeline.Config{SampleRate: 16000}, ring, wake, vd, m, nil, nil)

	state := convo.New(convo.Config{}, "test system prompt")
	exec := &pipeline.Executor{
		STT:     &stt.Mock{Text: "hello"},
		LLM:     &llm.Mock{Results: []llm.CompletionResult{{Text: "hi", FinishReason: "stop"}}},
		Tools:   tools.NewDispatcher(tools.NewRegistry(), 0),
		TTS:     &tts.Mock{},
		Metrics: m,
	}
	devices := func() (audiopipeline.Device, error) { return blockingDevice{}, nil }

	o := orchestrator.New(orchestrator.Config{}, audio, devices, state, exec, m, nil)
	o.Initialize(context.Background())
	return o
}

func TestServeHandlesGetStatus(t *testing.T) {
	o := newTestOrchestrator()
	var out bytes.Buffer
	h := New(o, &out)

	in := strings.NewReader(`{"command":"get_status"}` + "\n")
	if err := h.Serve(in); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var reply Reply
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &reply); err != nil {
		t.Fatalf("unmarshal reply: %v (body: %s)", err, out.String())
	}
	if reply.Response != "get_status" || !reply.OK {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

func TestServeHandlesStartStopLifecycle(t *testing.T) {
	o := newTestOrchestrator()
	var out bytes.Buffer
	h := New(o, &out)

	in := strings.NewReader(`{"command":"start"}` + "\n" + `{"command":"stop"}` + "\n")
	if err := h.Serve(in); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 reply lines, got %d: %v", len(lines), lines)
	}
	for _, l := range lines {
		var reply Reply
		if err := json.Unmarshal([]byte(l), &reply); err != nil {
			t.Fatalf("unmarshal %q: %v", l, err)
		}
		if !reply.OK {
			t.Errorf("expected ok reply, got %+v", reply)
		}
	}
}

func TestServeRejectsUnknownCommand(t *testing.T) {
	o := newTestOrchestrator()
	var out bytes.Buffer
	h := New(o, &out)

	in := strings.NewReader(`{"command":"do_a_barrel_roll"}` + "\n")
	h.Serve(in)

	var reply Reply
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &reply); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if reply.OK {
		t.Error("expected unrecognized command to report ok=false")
	}
}

func TestRunEventsPrefixesStatusLines(t *testing.T) {
	o := newTestOrchestrator()
	var out bytes.Buffer
	h := New(o, &out)

	go h.RunEvents()
	o.Start(context.Background())
	defer o.Stop()

	time.Sleep(50 * time.Millisecond)

	body := out.String()
	if !strings.Contains(body, "STATUS ") {
		t.Errorf("expected a STATUS-prefixed line, got: %s", body)
	}
}
