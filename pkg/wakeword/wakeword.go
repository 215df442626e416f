// Package wakeword implements the C2 Wake Detector: a stateful, fixed-frame
// scanner that consumes consecutive PCM frames of a fixed sample count and
// reports wake-word detections with a score and sensitivity threshold.
//
// The real detection model (spectrogram/embedding/classifier cascade) is an
// external asset this module does not ship (see DESIGN.md); Detector is the
// seam a model-backed implementation plugs into, and Mock is the
// deterministic stand-in used when no model is configured or available,
// matching spec.md §4.2's required graceful mock-mode fallback.
package wakeword

// FrameSamples is the fixed frame size (F) all Detector implementations
// require: 80ms @ 16kHz mono.
const FrameSamples = 1280

// Detection is reported by Process when a wake word is recognized.
type Detection struct {
	Label      string
	Score      float64
	FrameIndex int64
}

// Detector is the C2 contract. Process must be called with exactly
// FrameSamples-length chunks in sequence; implementations track rolling
// state across calls internally and Reset clears it.
type Detector interface {
	// Process consumes one fixed-size frame and returns a Detection if the
	// wake word was recognized ending at this frame, or ok=false otherwise.
	Process(frame []int16) (det Detection, ok bool)

	// Reset clears rolling state (called after a detection fires or when
	// resuming capture after a pause).
	Reset()

	// Sensitivity returns the configured threshold in [0,1].
	Sensitivity() float64

	// Name identifies the detector implementation for logging/metrics.
	Name() string
}

// Mock is a deterministic Detector used in tests and as the graceful
// fallback when no real model is configured: it fires a detection every
// every'th call to Process, regardless of frame contents.
type Mock struct {
	every int
	label string
	sens  float64
	count int64
}

// MockConfig configures a Mock detector.
type MockConfig struct {
	Every       int     // fire on every Nth Process call; default 50
	Label       string  // detection label to report; default "mock"
	Sensitivity float64 // reported Sensitivity(); default 0.5
}

// NewMock creates a deterministic Mock detector.
func NewMock(cfg MockConfig) *Mock {
	if cfg.Every <= 0 {
		cfg.Every = 50
	}
	if cfg.Label == "" {
		cfg.Label = "mock"
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = 0.5
	}
	return &Mock{every: cfg.Every, label: cfg.Label, sens: cfg.Sensitivity}
}

func (m *Mock) Name() string         { return "mock" }
func (m *Mock) Sensitivity() float64 { return m.sens }
func (m *Mock) Reset()               { m.count = 0 }

func (m *Mock) Process(frame []int16) (Detection, bool) {
	m.count++
	if m.count%int64(m.every) != 0 {
		return Detection{}, false
	}
	return Detection{Label: m.label, Score: 1.0, FrameIndex: m.count}, true
}
