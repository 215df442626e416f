package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadBackpressurePolicy(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.BackpressurePolicy = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid backpressure policy")
	}
}

func TestValidateRejectsZeroSampleRate(t *testing.T) {
	cfg := Default()
	cfg.Audio.SampleRate = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestValidateRejectsMissingLanguage(t *testing.T) {
	cfg := Default()
	cfg.Language = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing language")
	}
}

func TestBufferCapacitySamples(t *testing.T) {
	cfg := Default()
	cfg.Audio.SampleRate = 16000
	cfg.Audio.BufferDurationSeconds = 3.0
	if got := cfg.BufferCapacitySamples(); got != 48000 {
		t.Errorf("expected 48000, got %d", got)
	}
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != Default().Audio.SampleRate {
		t.Errorf("expected default sample rate")
	}
}
