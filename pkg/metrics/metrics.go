// Package metrics implements the C6 Metrics Collector: a bounded per-stage
// latency ring plus success/error counters and a recent-error log, exposed
// both as an in-process snapshot (avg/min/max/p95) for the control protocol's
// get_metrics command and as OpenTelemetry instruments bridged to Prometheus
// for external scraping, following the instrument layout of
// MrWong99-glyphoxa's internal/observe/metrics.go.
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stage identifies a pipeline phase tracked independently.
type Stage string

const (
	StageWake     Stage = "wake"
	StageSTT      Stage = "stt"
	StageLLM      Stage = "llm"
	StageTool     Stage = "tool"
	StageTTS      Stage = "tts"
	StageEndToEnd Stage = "end_to_end"
)

// ringSize bounds how many recent samples each stage retains, per spec.md
// §4.6 ("last 1000 durations").
const ringSize = 1000

// errorLogSize bounds the retained recent-error log.
const errorLogSize = 50

type ring struct {
	mu      sync.Mutex
	samples []time.Duration // circular
	next    int
	filled  bool
	success int64
	errors  int64
	errLog  []ErrorEntry
}

// ErrorEntry is one retained failure event for a stage.
type ErrorEntry struct {
	Time time.Time
	Kind string
	Msg  string
}

func newRing() *ring {
	return &ring{samples: make([]time.Duration, ringSize)}
}

func (r *ring) record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.next] = d
	r.next = (r.next + 1) % ringSize
	if r.next == 0 {
		r.filled = true
	}
	r.success++
}

func (r *ring) recordError(kind, msg string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
	r.errLog = append(r.errLog, ErrorEntry{Time: now, Kind: kind, Msg: msg})
	if len(r.errLog) > errorLogSize {
		r.errLog = r.errLog[len(r.errLog)-errorLogSize:]
	}
}

// StageSnapshot summarizes one stage's recent behavior.
type StageSnapshot struct {
	Count       int
	SuccessSeen int64
	ErrorSeen   int64
	AvgMs       float64
	MinMs       float64
	MaxMs       float64
	P95Ms       float64
	RecentErrors []ErrorEntry
}

func (r *ring) snapshot() StageSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.filled {
		n = ringSize
	}
	if n == 0 {
		errs := make([]ErrorEntry, len(r.errLog))
		copy(errs, r.errLog)
		return StageSnapshot{SuccessSeen: r.success, ErrorSeen: r.errors, RecentErrors: errs}
	}

	vals := make([]float64, n)
	var sum, min, max float64
	min = -1
	for i := 0; i < n; i++ {
		ms := float64(r.samples[i]) / float64(time.Millisecond)
		vals[i] = ms
		sum += ms
		if min < 0 || ms < min {
			min = ms
		}
		if ms > max {
			max = ms
		}
	}
	sort.Float64s(vals)
	p95idx := int(float64(len(vals))*0.95)
	if p95idx >= len(vals) {
		p95idx = len(vals) - 1
	}

	errs := make([]ErrorEntry, len(r.errLog))
	copy(errs, r.errLog)

	return StageSnapshot{
		Count:        n,
		SuccessSeen:  r.success,
		ErrorSeen:    r.errors,
		AvgMs:        sum / float64(n),
		MinMs:        min,
		MaxMs:        max,
		P95Ms:        vals[p95idx],
		RecentErrors: errs,
	}
}

// Collector is the C6 implementation: bounded per-stage rings plus an
// optional OpenTelemetry bridge. The zero value is not usable; use New.
type Collector struct {
	rings map[Stage]*ring
	otel  *otelBridge // nil if constructed without a MeterProvider
}

// New creates a Collector with independent rings for every known Stage.
func New() *Collector {
	c := &Collector{rings: make(map[Stage]*ring)}
	for _, s := range []Stage{StageWake, StageSTT, StageLLM, StageTool, StageTTS, StageEndToEnd} {
		c.rings[s] = newRing()
	}
	return c
}

// WithOTel attaches an OpenTelemetry metric bridge backed by mp. Returns an
// error if instrument creation fails.
func (c *Collector) WithOTel(mp metric.MeterProvider) error {
	b, err := newOTelBridge(mp)
	if err != nil {
		return err
	}
	c.otel = b
	return nil
}

func (c *Collector) ring(stage Stage) *ring {
	r, ok := c.rings[stage]
	if !ok {
		r = newRing()
		c.rings[stage] = r
	}
	return r
}

// Record logs a successful stage execution of duration d.
func (c *Collector) Record(ctx context.Context, stage Stage, d time.Duration) {
	c.ring(stage).record(d)
	if c.otel != nil {
		c.otel.recordDuration(ctx, stage, d, "ok")
	}
}

// RecordError logs a failed stage execution.
func (c *Collector) RecordError(ctx context.Context, stage Stage, kind, msg string, now time.Time) {
	c.ring(stage).recordError(kind, msg, now)
	if c.otel != nil {
		c.otel.recordError(ctx, stage, kind)
	}
}

// Timer starts timing stage and returns a stop function; call it exactly
// once, with the error returned by the timed operation (nil on success).
func (c *Collector) Timer(ctx context.Context, stage Stage) func(err error, kind string) {
	start := time.Now()
	return func(err error, kind string) {
		d := time.Since(start)
		if err != nil {
			c.RecordError(ctx, stage, kind, err.Error(), time.Now())
			return
		}
		c.Record(ctx, stage, d)
	}
}

// Snapshot returns the current per-stage summaries, suitable for the
// get_metrics control-protocol reply.
func (c *Collector) Snapshot() map[Stage]StageSnapshot {
	out := make(map[Stage]StageSnapshot, len(c.rings))
	for s, r := range c.rings {
		out[s] = r.snapshot()
	}
	return out
}

// otelBridge wraps the OpenTelemetry instruments this collector feeds,
// grounded on MrWong99-glyphoxa's internal/observe/metrics.go instrument
// layout (histogram per stage plus counters).
type otelBridge struct {
	duration metric.Float64Histogram
	success  metric.Int64Counter
	errors   metric.Int64Counter
}

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

func newOTelBridge(mp metric.MeterProvider) (*otelBridge, error) {
	m := mp.Meter("github.com/corvidvoice/corvid")
	b := &otelBridge{}
	var err error
	if b.duration, err = m.Float64Histogram("corvid.stage.duration",
		metric.WithDescription("Latency of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if b.success, err = m.Int64Counter("corvid.stage.success",
		metric.WithDescription("Successful stage executions."),
	); err != nil {
		return nil, err
	}
	if b.errors, err = m.Int64Counter("corvid.stage.errors",
		metric.WithDescription("Failed stage executions by error kind."),
	); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *otelBridge) recordDuration(ctx context.Context, stage Stage, d time.Duration, status string) {
	b.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("status", status),
	))
	b.success.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
}

func (b *otelBridge) recordError(ctx context.Context, stage Stage, kind string) {
	b.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("kind", kind),
	))
}
