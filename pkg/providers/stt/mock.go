package stt

import "context"

// Mock returns a fixed transcript regardless of input, for tests that
// exercise the pipeline without a network-backed provider.
type Mock struct {
	Text string
	Err  error
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Transcribe(ctx context.Context, pcm []byte, sampleRate int, lang string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}
