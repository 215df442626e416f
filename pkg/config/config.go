// Package config loads and validates the single configuration map the
// orchestrator is constructed from (spec.md §6 Configuration), sourced
// from a YAML file with environment-variable overrides for API keys,
// following the teacher's internal/config layering.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Audio holds capture/wake-path tuning.
type Audio struct {
	SampleRate            int     `yaml:"sample_rate"`
	BufferDurationSeconds float64 `yaml:"buffer_duration_seconds"`
	WakeSensitivity       float64 `yaml:"wake_sensitivity"`
	WakePrefixMs          int     `yaml:"wake_prefix_ms"`
	MaxUtteranceSeconds   int     `yaml:"max_utterance_seconds"`
	EchoGuardMs           int     `yaml:"echo_guard_ms"`
}

// VAD holds C3 hangover tuning.
type VAD struct {
	SilenceMs   int `yaml:"silence_ms"`
	MinSpeechMs int `yaml:"min_speech_ms"`
}

// Conversation holds C5 pruning tuning.
type Conversation struct {
	MaxTurns             int `yaml:"max_turns"`
	MaxContextTokens     int `yaml:"max_context_tokens"`
	SessionTimeoutSecond int `yaml:"session_timeout_seconds"`
}

// Pipeline holds C9 tool-loop and C10 backpressure tuning.
type Pipeline struct {
	MaxToolIterations  int    `yaml:"max_tool_iterations"`
	BackpressurePolicy string `yaml:"backpressure_policy"` // coalesce | drop_newest | drop_oldest
}

// LLM holds provider selection and resilience tuning. APIKey is never
// read from YAML; it is sourced from the environment only.
type LLM struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	RetryMax        int    `yaml:"retry_max"`
	FallbackProvider string `yaml:"fallback_provider"`
	APIKey          string `yaml:"-"`
	FallbackAPIKey  string `yaml:"-"`
}

// STT holds the speech-to-text provider selection.
type STT struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"`
}

// TTS holds voice synthesis tuning.
type TTS struct {
	Provider string `yaml:"provider"`
	Voice    string `yaml:"voice"`
	RateWPM  int    `yaml:"rate_wpm"`
	Volume   float64 `yaml:"volume"`
	APIKey   string `yaml:"-"`
}

// Metrics holds the C6 reporting cadence.
type Metrics struct {
	Enabled           bool `yaml:"enabled"`
	LogIntervalSeconds int `yaml:"log_interval_seconds"`
}

// Tools holds C8 sandbox path and script allow/deny lists.
type Tools struct {
	AllowPaths               []string `yaml:"allow_paths"`
	DenyPaths                []string `yaml:"deny_paths"`
	AllowDangerousSubstrings []string `yaml:"allow_dangerous_substrings"`
}

// Config is the fully validated, process-lifetime-fixed configuration map.
// Hot-reload is deliberately not supported (see SPEC_FULL.md §D).
type Config struct {
	Language     string       `yaml:"language"`
	Audio        Audio        `yaml:"audio"`
	VAD          VAD          `yaml:"vad"`
	Conversation Conversation `yaml:"conversation"`
	Pipeline     Pipeline     `yaml:"pipeline"`
	LLM          LLM          `yaml:"llm"`
	STT          STT          `yaml:"stt"`
	TTS          TTS          `yaml:"tts"`
	Metrics      Metrics      `yaml:"metrics"`
	Tools        Tools        `yaml:"tools"`
}

// Default returns a Config with every spec.md §6 default applied.
func Default() Config {
	return Config{
		Language: "en",
		Audio: Audio{
			SampleRate:            16000,
			BufferDurationSeconds: 3.0,
			WakeSensitivity:       0.5,
			WakePrefixMs:          500,
			MaxUtteranceSeconds:   30,
			EchoGuardMs:           250,
		},
		VAD: VAD{SilenceMs: 500, MinSpeechMs: 250},
		Conversation: Conversation{
			MaxTurns:             10,
			MaxContextTokens:     4096,
			SessionTimeoutSecond: 1800,
		},
		Pipeline: Pipeline{MaxToolIterations: 5, BackpressurePolicy: "drop_newest"},
		LLM:      LLM{Provider: "groq", TimeoutSeconds: 60, RetryMax: 3},
		STT:      STT{Provider: "groq"},
		TTS:      TTS{Provider: "lokutor", RateWPM: 175, Volume: 1.0},
		Metrics:  Metrics{Enabled: true, LogIntervalSeconds: 60},
		Tools:    Tools{},
	}
}

// Load reads a YAML file at path (if non-empty) over the defaults, loads
// a .env file (if present) for API keys, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		// Absence of a .env file is not an error; keys may come from the
		// real environment instead.
		_ = err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.LLM.APIKey = pickAPIKey(cfg.LLM.Provider)
	if cfg.LLM.FallbackProvider != "" {
		cfg.LLM.FallbackAPIKey = pickAPIKey(cfg.LLM.FallbackProvider)
	}
	cfg.STT.APIKey = pickAPIKey(cfg.STT.Provider)
	cfg.TTS.APIKey = os.Getenv("LOKUTOR_API_KEY")
}

func pickAPIKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		return os.Getenv("GOOGLE_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "deepgram":
		return os.Getenv("DEEPGRAM_API_KEY")
	case "assemblyai":
		return os.Getenv("ASSEMBLYAI_API_KEY")
	default:
		return ""
	}
}

// Validate checks the audio sample rate, buffer duration and wake
// sensitivity, the conversation turn and token limits, the pipeline's
// max_tool_iterations and backpressure_policy, and that language is set.
// Other fields (VAD, timeouts, retry counts, provider names) are not
// checked. It does not check for API key presence — a provider may be used
// in tests via a mock.
func (c Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: audio.sample_rate must be positive")
	}
	if c.Audio.BufferDurationSeconds <= 0 {
		return fmt.Errorf("config: audio.buffer_duration_seconds must be positive")
	}
	if c.Audio.WakeSensitivity < 0 || c.Audio.WakeSensitivity > 1 {
		return fmt.Errorf("config: audio.wake_sensitivity must be in [0,1]")
	}
	if c.Conversation.MaxTurns <= 0 {
		return fmt.Errorf("config: conversation.max_turns must be positive")
	}
	if c.Conversation.MaxContextTokens <= 0 {
		return fmt.Errorf("config: conversation.max_context_tokens must be positive")
	}
	if c.Pipeline.MaxToolIterations <= 0 {
		return fmt.Errorf("config: pipeline.max_tool_iterations must be positive")
	}
	switch c.Pipeline.BackpressurePolicy {
	case "coalesce", "drop_newest", "drop_oldest":
	default:
		return fmt.Errorf("config: pipeline.backpressure_policy must be one of coalesce|drop_newest|drop_oldest, got %q", c.Pipeline.BackpressurePolicy)
	}
	if c.Language == "" {
		return fmt.Errorf("config: language is required")
	}
	return nil
}

// BufferCapacitySamples converts the configured buffer duration to a
// sample count for pkg/ringbuffer.
func (c Config) BufferCapacitySamples() int {
	return int(c.Audio.BufferDurationSeconds * float64(c.Audio.SampleRate))
}
