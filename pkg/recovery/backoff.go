package recovery

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig tunes exponential backoff with full jitter (AWS "full
// jitter" algorithm: sleep = random(0, min(cap, base * 2^attempt))).
type BackoffConfig struct {
	Base       time.Duration // default 1s
	Cap        time.Duration // default 8s
	MaxRetries int           // default 3
}

func (c *BackoffConfig) defaults() {
	if c.Base <= 0 {
		c.Base = time.Second
	}
	if c.Cap <= 0 {
		c.Cap = 8 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Delay returns the backoff duration for the given zero-based attempt
// number, picked uniformly from [0, min(cap, base*2^attempt)).
func (c BackoffConfig) Delay(attempt int) time.Duration {
	c.defaults()
	max := float64(c.Base) * math.Pow(2, float64(attempt))
	if max > float64(c.Cap) {
		max = float64(c.Cap)
	}
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Retry calls fn up to cfg.MaxRetries+1 times, sleeping with full-jitter
// backoff between attempts, stopping early if ctx is cancelled or fn
// returns a nil error. The last error is returned if every attempt fails.
func Retry(ctx context.Context, cfg BackoffConfig, fn func(ctx context.Context) error) error {
	cfg.defaults()
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}
	return err
}
