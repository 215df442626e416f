package audiopipeline

import (
	"context"
	"errors"
	"time"

	"github.com/corvidvoice/corvid/pkg/recovery"
)

// DeviceFactory opens a fresh Device, used both for the initial capture
// start and for every reconnect attempt after a disconnect.
type DeviceFactory func() (Device, error)

// reconnectBackoff is the capture device's own 200ms-to-5s reconnect
// schedule (spec.md §4.4's failure semantics), independent of the
// general-purpose recovery.BackoffConfig defaults used elsewhere.
var reconnectBackoff = recovery.BackoffConfig{Base: 200 * time.Millisecond, Cap: 5 * time.Second, MaxRetries: 1 << 30}

// Run drives Pipeline.Feed from factory-opened Devices until ctx is
// cancelled or the device reports ErrPermissionDenied, which is fatal:
// the caller (C10) must enter ERROR rather than retry. Any other read or
// open failure is treated as a transient disconnect and retried with
// exponential backoff; no AudioEvents are emitted during an outage.
func Run(ctx context.Context, factory DeviceFactory, pipeline *Pipeline) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		dev, err := factory()
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				return err
			}
			if !sleepBackoff(ctx, attempt) {
				return nil
			}
			attempt++
			continue
		}

		attempt = 0
		runErr := readLoop(ctx, dev, pipeline)
		dev.Close()

		if runErr == nil {
			return nil
		}
		if errors.Is(runErr, ErrPermissionDenied) {
			return runErr
		}
		if ctx.Err() != nil {
			return nil
		}
		if !sleepBackoff(ctx, attempt) {
			return nil
		}
		attempt++
	}
}

func readLoop(ctx context.Context, dev Device, pipeline *Pipeline) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		samples, err := dev.Read(ctx)
		if err != nil {
			return err
		}
		pipeline.Feed(samples, dev.Channels())
	}
}

func sleepBackoff(ctx context.Context, attempt int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(reconnectBackoff.Delay(attempt)):
		return true
	}
}
