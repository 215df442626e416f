package main

import (
	"context"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/corvidvoice/corvid/pkg/audiopipeline"
)

// captureDevice adapts one malgo capture stream to audiopipeline.Device,
// in the shape of the teacher's cmd/agent/main.go onSamples callback
// (there: one duplex stream feeding both capture and playback; here: split
// into captureDevice and playbackSink below so a capture reconnect doesn't
// tear down the independent playback stream mid-utterance).
type captureDevice struct {
	mctx *malgo.AllocatedContext
	dev  *malgo.Device

	chunks chan []int16
}

// newCaptureDevice opens one malgo capture-only device at sampleRate, mono.
func newCaptureDevice(sampleRate int) (*captureDevice, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	d := &captureDevice{mctx: mctx, chunks: make(chan []int16, 8)}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: d.onSamples})
	if err != nil {
		mctx.Uninit()
		return nil, err
	}
	d.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		mctx.Uninit()
		return nil, err
	}
	return d, nil
}

func (d *captureDevice) onSamples(_, pInput []byte, _ uint32) {
	if pInput == nil {
		return
	}
	samples := make([]int16, len(pInput)/2)
	for i := range samples {
		samples[i] = int16(pInput[2*i]) | int16(pInput[2*i+1])<<8
	}
	select {
	case d.chunks <- samples:
	default:
		// capture consumer is behind; drop this chunk rather than block the
		// audio callback, matching audiopipeline's own drop-newest policy.
	}
}

// Read implements audiopipeline.Device.
func (d *captureDevice) Read(ctx context.Context) ([]int16, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case samples := <-d.chunks:
		return samples, nil
	}
}

func (d *captureDevice) Channels() int { return 1 }

func (d *captureDevice) Close() error {
	d.dev.Uninit()
	d.mctx.Uninit()
	return nil
}

// captureDeviceFactory builds an audiopipeline.DeviceFactory that opens a
// fresh captureDevice on every call, as required for C4's reconnect loop.
func captureDeviceFactory(sampleRate int) audiopipeline.DeviceFactory {
	return func() (audiopipeline.Device, error) {
		return newCaptureDevice(sampleRate)
	}
}

// playbackSink drives an independent malgo playback-only device from a
// byte queue, used as the TTS provider's Player sink. Kept separate from
// captureDevice so a capture-side reconnect never interrupts audio the
// assistant is already speaking.
type playbackSink struct {
	mctx *malgo.AllocatedContext
	dev  *malgo.Device

	mu    sync.Mutex
	queue []byte
}

func newPlaybackSink(sampleRate int) (*playbackSink, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	s := &playbackSink{mctx: mctx}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: s.onSamples})
	if err != nil {
		mctx.Uninit()
		return nil, err
	}
	s.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		mctx.Uninit()
		return nil, err
	}
	return s, nil
}

func (s *playbackSink) onSamples(pOutput, _ []byte, _ uint32) {
	if pOutput == nil {
		return
	}
	s.mu.Lock()
	n := copy(pOutput, s.queue)
	s.queue = s.queue[n:]
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
	s.mu.Unlock()
}

// Enqueue appends a decoded PCM chunk to the playback queue. Matches the
// LokutorTTS.Player func([]byte) error signature.
func (s *playbackSink) Enqueue(pcm []byte) error {
	s.mu.Lock()
	s.queue = append(s.queue, pcm...)
	s.mu.Unlock()
	return nil
}

func (s *playbackSink) Close() error {
	s.dev.Uninit()
	s.mctx.Uninit()
	return nil
}
