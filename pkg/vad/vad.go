// Package vad implements the voice-activity detector / utterance extractor
// (spec.md C3): classifying incoming audio chunks as speech or silence and
// signalling end-of-utterance once a configured silence hangover has
// elapsed following a minimum amount of speech.
package vad

import "math"

// Detector is the C3 contract. Implementations must be safe for sequential
// use by a single caller (one Detector instance per ManagedStream-equivalent);
// Reset re-arms end-of-speech tracking between utterances.
type Detector interface {
	// Classify reports whether chunk looks like speech and a confidence in [0,1].
	Classify(chunk []int16) (isSpeech bool, confidence float64)

	// EndOfSpeech returns true once >= silence duration of quiet has been
	// observed following >= min-speech duration of speech since the last Reset.
	EndOfSpeech(chunk []int16) bool

	// Reset clears all accumulated state between utterances.
	Reset()

	// Name identifies the detector implementation for logging/metrics.
	Name() string
}

// EnergyVAD is the RMS-energy fallback model described in spec.md §4.3:
// "if the sophisticated model is unavailable, use RMS-energy threshold
// with the same interface." It is also the only model this module ships,
// since the "sophisticated" model is an external, license-encumbered
// dependency out of scope for this core.
type EnergyVAD struct {
	sampleRate  int
	threshold   float64
	silenceMs   int
	minSpeechMs int

	speechAccumMs  int
	silenceAccumMs int
	speaking       bool
}

// Config configures an EnergyVAD.
type Config struct {
	SampleRate  int     // samples/sec, used to convert chunk length to ms
	Threshold   float64 // RMS amplitude threshold in [0,1]; default 0.02
	SilenceMs   int     // T_silence, default 500
	MinSpeechMs int     // T_min_speech, default 250
}

// New creates an EnergyVAD with defaults applied for zero-valued fields.
func New(cfg Config) *EnergyVAD {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.02
	}
	if cfg.SilenceMs <= 0 {
		cfg.SilenceMs = 500
	}
	if cfg.MinSpeechMs <= 0 {
		cfg.MinSpeechMs = 250
	}
	return &EnergyVAD{
		sampleRate:  cfg.SampleRate,
		threshold:   cfg.Threshold,
		silenceMs:   cfg.SilenceMs,
		minSpeechMs: cfg.MinSpeechMs,
	}
}

func (v *EnergyVAD) Name() string { return "energy_vad" }

func (v *EnergyVAD) Classify(chunk []int16) (bool, float64) {
	rms := rms(chunk)
	isSpeech := rms > v.threshold
	// confidence scales linearly from 0 at silence up to 1 at 4x threshold.
	confidence := rms / (v.threshold * 4)
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return isSpeech, confidence
}

func (v *EnergyVAD) chunkMs(chunk []int16) int {
	if v.sampleRate <= 0 {
		return 0
	}
	return len(chunk) * 1000 / v.sampleRate
}

// EndOfSpeech feeds chunk into the speech/silence accumulator and reports
// whether the end-of-utterance condition now holds.
func (v *EnergyVAD) EndOfSpeech(chunk []int16) bool {
	isSpeech, _ := v.Classify(chunk)
	ms := v.chunkMs(chunk)

	if isSpeech {
		v.speaking = true
		v.speechAccumMs += ms
		v.silenceAccumMs = 0
		return false
	}

	if !v.speaking {
		// Silence before any speech was ever observed: nothing to end.
		return false
	}

	v.silenceAccumMs += ms
	if v.speechAccumMs >= v.minSpeechMs && v.silenceAccumMs >= v.silenceMs {
		return true
	}
	return false
}

// Reset clears all accumulated speech/silence duration tracking.
func (v *EnergyVAD) Reset() {
	v.speechAccumMs = 0
	v.silenceAccumMs = 0
	v.speaking = false
}

func rms(chunk []int16) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, s := range chunk {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(chunk)))
}
