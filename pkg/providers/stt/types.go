// Package stt defines the speech-to-text provider seam (C9's first
// pipeline step) and its concrete backends.
package stt

import "context"

// Provider transcribes a mono 16-bit PCM utterance into text. lang is an
// optional BCP-47-ish hint (e.g. "en"); implementations that don't support
// a hint silently ignore it.
type Provider interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, lang string) (string, error)
	Name() string
}
