package tts

import "context"

// Outcome is the result of a Speak call, per spec.md's
// Tts.speak(...) -> done|cancelled|failed contract.
type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Options configures one synthesis request.
type Options struct {
	Voice  string
	RateWPM int
	Volume float64
}

// Provider synthesizes speech and plays or returns it. Speak must honor
// ctx cancellation at chunk boundaries: once ctx is done, it stops
// emitting further chunks and returns OutcomeCancelled rather than
// OutcomeFailed.
type Provider interface {
	Speak(ctx context.Context, text string, opts Options) (Outcome, error)
	Name() string
}
