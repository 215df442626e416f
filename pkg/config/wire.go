package config

import (
	"context"
	"fmt"

	"github.com/corvidvoice/corvid/pkg/providers/llm"
	"github.com/corvidvoice/corvid/pkg/providers/stt"
	"github.com/corvidvoice/corvid/pkg/providers/tts"
)

// BuildLLM constructs the Provider named by cfg.Provider, following
// cmd/agent's original provider-selection switch (now data-driven off
// Config rather than hardcoded in main).
func BuildLLM(ctx context.Context, cfg LLM) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAI(cfg.APIKey, cfg.Model, ""), nil
	case "anthropic":
		return llm.NewAnthropic(cfg.APIKey, cfg.Model, ""), nil
	case "google":
		return llm.NewGoogle(ctx, cfg.APIKey, cfg.Model, "")
	case "groq", "":
		return llm.NewGroqLLM(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("config: unknown llm provider %q", cfg.Provider)
	}
}

// BuildSTT constructs the Provider named by cfg.Provider.
func BuildSTT(cfg STT) (stt.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return stt.NewOpenAISTT(cfg.APIKey, cfg.Model), nil
	case "deepgram":
		return stt.NewDeepgramSTT(cfg.APIKey), nil
	case "assemblyai":
		return stt.NewAssemblyAISTT(cfg.APIKey), nil
	case "groq", "":
		model := cfg.Model
		if model == "" {
			model = "whisper-large-v3-turbo"
		}
		return stt.NewGroqSTT(cfg.APIKey, model), nil
	default:
		return nil, fmt.Errorf("config: unknown stt provider %q", cfg.Provider)
	}
}

// BuildTTS constructs the Provider named by cfg.Provider. Lokutor is the
// only real backend wired (per spec.md, the voice layer this module ships
// against); any other name falls back to the deterministic Mock so the
// process still runs without a synthesis key.
func BuildTTS(cfg TTS) tts.Provider {
	switch cfg.Provider {
	case "lokutor", "":
		return tts.NewLokutorTTS(cfg.APIKey)
	default:
		return &tts.Mock{}
	}
}
