package stt

import "context"

// GroqSTT transcribes via Groq's Whisper-compatible endpoint, which takes
// the same multipart shape as OpenAI's.
type GroqSTT struct {
	apiKey string
	url    string
	model  string
}

func NewGroqSTT(apiKey, model string) *GroqSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqSTT{apiKey: apiKey, url: "https://api.groq.com/openai/v1/audio/transcriptions", model: model}
}

func (s *GroqSTT) Name() string { return "groq_stt" }

func (s *GroqSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, lang string) (string, error) {
	return postTranscription(ctx, s.url, s.apiKey, "Bearer "+s.apiKey, s.model, pcm, sampleRate, lang)
}
