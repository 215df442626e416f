package tts

import "context"

// Mock records the text of every Speak call that completes and returns a
// fixed outcome, for pipeline tests that don't want a network-backed
// synthesizer. Calls that return Err or find ctx already cancelled are not
// recorded.
type Mock struct {
	Spoken  []string
	Outcome Outcome
	Err     error
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Speak(ctx context.Context, text string, opts Options) (Outcome, error) {
	if m.Err != nil {
		return OutcomeFailed, m.Err
	}
	select {
	case <-ctx.Done():
		return OutcomeCancelled, nil
	default:
	}
	m.Spoken = append(m.Spoken, text)
	outcome := m.Outcome
	if outcome == "" {
		outcome = OutcomeDone
	}
	return outcome, nil
}
