// Package audiopipeline implements the C4 Audio Pipeline: the
// Monitoring/Capturing capture-loop state machine that downmixes incoming
// microphone chunks, feeds them to the C1 ring buffer and the C2 wake
// detector, and — once wake-word or hotkey triggers capture — streams
// frames to the C3 VAD until an utterance is complete, emitting AudioEvents
// for C9/C10 to consume. Grounded on the teacher's
// pkg/orchestrator/managed_stream.go capture/VAD-feed loop, generalized
// from its RMSVAD-specific echo handling to the pkg/vad.Detector seam.
package audiopipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/corvidvoice/corvid/pkg/metrics"
	"github.com/corvidvoice/corvid/pkg/recovery"
	"github.com/corvidvoice/corvid/pkg/ringbuffer"
	"github.com/corvidvoice/corvid/pkg/vad"
	"github.com/corvidvoice/corvid/pkg/wakeword"
)

// Mode is the C4 capture state.
type Mode int

const (
	Monitoring Mode = iota
	Capturing
)

func (m Mode) String() string {
	if m == Capturing {
		return "capturing"
	}
	return "monitoring"
}

// EventKind discriminates the AudioEvent tagged union (spec.md §3).
type EventKind int

const (
	EventWakeWord EventKind = iota
	EventHotkey
	EventUtteranceReady
)

// AudioEvent is C4's output, consumed by C9/C10.
type AudioEvent struct {
	Kind       EventKind
	Timestamp  time.Time
	PCM        []int16       // populated only for EventUtteranceReady
	Duration   time.Duration // populated only for EventUtteranceReady
}

// ErrPermissionDenied is returned by a Device when the OS denies
// microphone access. It is fatal to C4: the caller must surface it to C10
// so the orchestrator can enter ERROR rather than retry forever.
var ErrPermissionDenied = errors.New("audiopipeline: microphone permission denied")

// Device is the capture-loop's seam over the real audio backend (malgo in
// cmd/agent, a scripted fake in tests). Read blocks until one chunk of
// samples is available or ctx is done.
type Device interface {
	Read(ctx context.Context) (samples []int16, err error)
	Channels() int
	Close() error
}

// Config configures one Pipeline instance from spec.md §6's audio.* and
// vad.* keys.
type Config struct {
	SampleRate         int
	BufferCapacity     int // samples; BufferDurationSeconds * SampleRate
	WakePrefixMs       int
	MaxUtteranceSec    int
	EchoGuardMs        int
	EventQueueCapacity int // default 4, per spec.md's bounded-queue note
}

func (c *Config) defaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = c.SampleRate * 3
	}
	if c.WakePrefixMs <= 0 {
		c.WakePrefixMs = 500
	}
	if c.MaxUtteranceSec <= 0 {
		c.MaxUtteranceSec = 30
	}
	if c.EchoGuardMs <= 0 {
		c.EchoGuardMs = 250
	}
	if c.EventQueueCapacity <= 0 {
		c.EventQueueCapacity = 4
	}
}

// StatusChecker reports whether C10 is ready to accept a new utterance
// (status == LISTENING). When it returns false, Capturing mode still
// completes the in-flight utterance (so audio isn't lost mid-word), then
// discards it without emitting an event, logging a warning and recording an
// UtteranceDroppedNotListening error with C6.
type StatusChecker func() bool

// Pipeline is the C4 implementation. One Pipeline drives one logical
// capture stream; Feed is not safe to call from multiple goroutines
// concurrently (the teacher's ManagedStream.Write has the same
// single-writer contract).
type Pipeline struct {
	cfg    Config
	ring   *ringbuffer.Buffer
	wake   wakeword.Detector
	vadDet vad.Detector
	events chan AudioEvent
	metric *metrics.Collector
	logger recovery.Logger
	status StatusChecker

	mode         Mode
	accumulator  []int16
	captureStart time.Time
	frameBuf     []int16 // partial wake-word frame, carried across Feed calls

	mu             sync.Mutex
	speaking       bool
	stoppedSpeakAt time.Time
}

// New creates a Pipeline. status may be nil, in which case C4 never
// discards a completed utterance on status grounds; events are still
// dropped when the bounded event queue is full (see emit).
func New(cfg Config, ring *ringbuffer.Buffer, wake wakeword.Detector, vadDet vad.Detector, metric *metrics.Collector, logger recovery.Logger, status StatusChecker) *Pipeline {
	cfg.defaults()
	if logger == nil {
		logger = recovery.NoOpLogger{}
	}
	return &Pipeline{
		cfg:    cfg,
		ring:   ring,
		wake:   wake,
		vadDet: vadDet,
		events: make(chan AudioEvent, cfg.EventQueueCapacity),
		metric: metric,
		logger: logger,
		status: status,
		mode:   Monitoring,
	}
}

// Events returns the channel C9/C10 read AudioEvents from.
func (p *Pipeline) Events() <-chan AudioEvent { return p.events }

// Mode reports the current capture mode.
func (p *Pipeline) Mode() Mode { return p.mode }

// SampleRate reports the configured capture sample rate, so C9 can
// attach it to the Utterance it builds from an UtteranceReady event.
func (p *Pipeline) SampleRate() int { return p.cfg.SampleRate }

// SetSpeaking tells the pipeline whether C10/TTS is currently producing
// audio. The transition to false arms the echo guard window: for
// EchoGuardMs afterward, a loud-enough chunk is still treated as genuine
// barge-in, but low-energy residue (likely the tail of our own playback
// leaking into the mic) is replaced by zeroed samples of the same length,
// which are then written to C1 and fed to C2/C3 as silence.
func (p *Pipeline) SetSpeaking(speaking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.speaking && !speaking {
		p.stoppedSpeakAt = time.Now()
	}
	p.speaking = speaking
}

func (p *Pipeline) inEchoGuard() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.speaking {
		return false
	}
	return time.Since(p.stoppedSpeakAt) < time.Duration(p.cfg.EchoGuardMs)*time.Millisecond
}

// echoGuardThreshold is the RMS amplitude (in [0,1] normalized units)
// below which a chunk observed during the echo guard window is treated as
// playback residue and replaced by silence. Chosen well above
// pkg/vad's default speech threshold so genuine speech still barges in.
const echoGuardThreshold = 0.12

func rmsOf(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// TriggerHotkey emits a Hotkey event and switches to Capturing with an
// empty accumulator, per spec.md §4.4 step 3. Safe to call concurrently
// with Feed.
func (p *Pipeline) TriggerHotkey() {
	p.mu.Lock()
	p.mode = Capturing
	p.accumulator = nil
	p.captureStart = time.Now()
	p.vadDet.Reset()
	p.wake.Reset()
	p.mu.Unlock()
	p.emit(AudioEvent{Kind: EventHotkey, Timestamp: time.Now()})
}

// Feed processes one chunk of incoming audio (downmixed to mono by the
// caller's Device, or multi-channel with channels > 1 for Pipeline to
// downmix itself).
func (p *Pipeline) Feed(chunk []int16, channels int) {
	if channels > 1 {
		chunk = ringbuffer.Downmix(chunk, channels)
	}
	if len(chunk) == 0 {
		return
	}

	if p.inEchoGuard() && rmsOf(chunk) < echoGuardThreshold {
		chunk = make([]int16, len(chunk)) // treat as silence, still advance time
	}

	p.ring.Write(chunk)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.mode {
	case Monitoring:
		p.feedMonitoring(chunk)
	case Capturing:
		p.feedCapturing(chunk)
	}
}

func (p *Pipeline) feedMonitoring(chunk []int16) {
	p.frameBuf = append(p.frameBuf, chunk...)
	for len(p.frameBuf) >= wakeword.FrameSamples {
		frame := p.frameBuf[:wakeword.FrameSamples]
		p.frameBuf = p.frameBuf[wakeword.FrameSamples:]

		if _, ok := p.wake.Process(frame); ok {
			p.startCapture()
			return
		}
	}
}

func (p *Pipeline) startCapture() {
	prefixSamples := p.cfg.WakePrefixMs * p.cfg.SampleRate / 1000
	prefix := p.ring.SnapshotLast(prefixSamples)

	p.mode = Capturing
	p.accumulator = append([]int16{}, prefix...)
	p.captureStart = time.Now()
	p.vadDet.Reset()
	p.wake.Reset()
	p.frameBuf = nil

	p.emit(AudioEvent{Kind: EventWakeWord, Timestamp: time.Now()})
}

func (p *Pipeline) feedCapturing(chunk []int16) {
	p.accumulator = append(p.accumulator, chunk...)

	maxSamples := p.cfg.MaxUtteranceSec * p.cfg.SampleRate
	endOfSpeech := p.vadDet.EndOfSpeech(chunk)
	overLimit := len(p.accumulator) >= maxSamples

	if !endOfSpeech && !overLimit {
		return
	}

	pcm := p.accumulator
	duration := time.Duration(len(pcm)) * time.Second / time.Duration(p.cfg.SampleRate)

	p.mode = Monitoring
	p.accumulator = nil
	p.vadDet.Reset()

	if p.status != nil && !p.status() {
		p.logger.Warn("dropping utterance: orchestrator not listening")
		if p.metric != nil {
			p.metric.RecordError(context.Background(), metrics.StageWake, "UtteranceDroppedNotListening", "", time.Now())
		}
		return
	}

	p.emit(AudioEvent{Kind: EventUtteranceReady, Timestamp: time.Now(), PCM: pcm, Duration: duration})
}

// emit delivers ev to the events channel, dropping the event and
// incrementing a C6 overflow counter if the bounded queue is full
// (spec.md's backpressure policy default, drop_newest, applied at the C4
// boundary since an unconsumed AudioEvent is strictly the newest item).
func (p *Pipeline) emit(ev AudioEvent) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("audio event queue full, dropping event", "kind", ev.Kind)
		if p.metric != nil {
			p.metric.RecordError(context.Background(), metrics.StageWake, "EventQueueOverflow", "", time.Now())
		}
	}
}
