package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corvidvoice/corvid/pkg/audiopipeline"
	"github.com/corvidvoice/corvid/pkg/config"
	"github.com/corvidvoice/corvid/pkg/convo"
	"github.com/corvidvoice/corvid/pkg/logging"
	"github.com/corvidvoice/corvid/pkg/metrics"
	"github.com/corvidvoice/corvid/pkg/orchestrator"
	"github.com/corvidvoice/corvid/pkg/pipeline"
	"github.com/corvidvoice/corvid/pkg/protocol"
	"github.com/corvidvoice/corvid/pkg/providers/tts"
	"github.com/corvidvoice/corvid/pkg/recovery"
	"github.com/corvidvoice/corvid/pkg/ringbuffer"
	"github.com/corvidvoice/corvid/pkg/tools"
	"github.com/corvidvoice/corvid/pkg/vad"
	"github.com/corvidvoice/corvid/pkg/wakeword"
)

var configPath string

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voice assistant, speaking the line-delimited JSON control protocol on stdio",
		Long: `serve wires the configured STT/LLM/TTS providers to the microphone
and speaker and drives the orchestrator's status FSM. A host process
controls it over stdin/stdout using one JSON command per line (spec.md §6);
status and result events are written to stdout prefixed STATUS/EVENT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file overriding defaults")
	return cmd
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New()

	llmProv, err := config.BuildLLM(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}
	var fallbackProv = llmProv
	if cfg.LLM.FallbackProvider != "" {
		fallbackProv, err = config.BuildLLM(ctx, config.LLM{
			Provider: cfg.LLM.FallbackProvider,
			APIKey:   cfg.LLM.FallbackAPIKey,
		})
		if err != nil {
			return fmt.Errorf("build fallback llm provider: %w", err)
		}
	}

	sttProv, err := config.BuildSTT(cfg.STT)
	if err != nil {
		return fmt.Errorf("build stt provider: %w", err)
	}

	ttsProv := config.BuildTTS(cfg.TTS)

	sink, err := newPlaybackSink(cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("open playback device: %w", err)
	}
	defer sink.Close()
	if l, ok := ttsProv.(*tts.LokutorTTS); ok {
		l.Player = sink.Enqueue
	}

	reg := tools.NewRegistry()
	notesDir := filepath.Join(os.TempDir(), "corvid-notes")
	os.MkdirAll(notesDir, 0o755)
	tools.RegisterFileTools(reg, notesDir, cfg.Tools.AllowPaths, cfg.Tools.DenyPaths)
	tools.RegisterScriptTool(reg, "", cfg.Tools.AllowDangerousSubstrings...)

	metricsCollector := metrics.New()
	telemetryShutdown, err := initTelemetry(cfg.Metrics.Enabled, metricsCollector)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer telemetryShutdown(context.Background())

	state := convo.New(convo.Config{
		MaxTurns:  cfg.Conversation.MaxTurns,
		MaxTokens: cfg.Conversation.MaxContextTokens,
	}, systemPromptFor(cfg.Language))

	dispatcher := tools.NewDispatcher(reg, 0)
	exec := &pipeline.Executor{
		STT:      sttProv,
		LLM:      llmProv,
		Fallback: fallbackProv,
		Tools:    dispatcher,
		ToolDefs: reg.List(),
		TTS:      ttsProv,
		Metrics:  metricsCollector,
		Cfg: pipeline.Config{
			MaxToolIterations: cfg.Pipeline.MaxToolIterations,
			LLMRetryMax:       cfg.LLM.RetryMax,
			Language:          cfg.Language,
			Voice:             tts.Options{Voice: cfg.TTS.Voice, RateWPM: cfg.TTS.RateWPM, Volume: cfg.TTS.Volume},
		},
		Logger:     logger,
		STTBreaker: recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{Name: "stt:" + cfg.STT.Provider, Logger: logger}),
		LLMBreaker: recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{Name: "llm:" + cfg.LLM.Provider, Logger: logger}),
		TTSBreaker: recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{Name: "tts:" + cfg.TTS.Provider, Logger: logger}),
	}

	ring := ringbuffer.New(cfg.BufferCapacitySamples())
	wake := wakeword.NewMock(wakeword.MockConfig{Sensitivity: cfg.Audio.WakeSensitivity})
	vadDet := vad.New(vad.Config{SampleRate: cfg.Audio.SampleRate, SilenceMs: cfg.VAD.SilenceMs, MinSpeechMs: cfg.VAD.MinSpeechMs})

	audio := audiopipeline.New(audiopipeline.Config{
		SampleRate:      cfg.Audio.SampleRate,
		BufferCapacity:  cfg.BufferCapacitySamples(),
		WakePrefixMs:    cfg.Audio.WakePrefixMs,
		MaxUtteranceSec: cfg.Audio.MaxUtteranceSeconds,
		EchoGuardMs:     cfg.Audio.EchoGuardMs,
	}, ring, wake, vadDet, metricsCollector, logger, nil) // backpressure is enforced at the orchestrator layer instead

	backpressure := orchestrator.BackpressurePolicy(cfg.Pipeline.BackpressurePolicy)
	orch := orchestrator.New(orchestrator.Config{
		AutoRelisten:       true,
		BackpressurePolicy: backpressure,
	}, audio, captureDeviceFactory(cfg.Audio.SampleRate), state, exec, metricsCollector, logger)

	if err := orch.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize orchestrator: %w", err)
	}

	handler := protocol.New(orch, os.Stdout)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go handler.RunEvents()
	go func() {
		<-sigCtx.Done()
		orch.Stop()
	}()

	return handler.Serve(os.Stdin)
}

func systemPromptFor(lang string) string {
	if lang == "es" {
		return "Eres un asistente de voz util y conciso. Usa frases cortas adecuadas para el habla."
	}
	return "You are a helpful and concise voice assistant. Use short sentences suitable for speech."
}
