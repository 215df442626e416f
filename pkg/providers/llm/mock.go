package llm

import "context"

// Mock returns a scripted sequence of CompletionResults, one per call, for
// pipeline tests that don't want a network-backed provider. The last
// result repeats once the script is exhausted.
type Mock struct {
	Results []CompletionResult
	Err     error
	calls   int
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if m.Err != nil {
		return CompletionResult{}, m.Err
	}
	if len(m.Results) == 0 {
		return CompletionResult{}, nil
	}
	idx := m.calls
	if idx >= len(m.Results) {
		idx = len(m.Results) - 1
	}
	m.calls++
	return m.Results[idx], nil
}
