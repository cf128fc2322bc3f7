package realtime

import (
	"math/rand/v2"
	"time"

	"github.com/rihigo/notify/internal/model"
)

// DefaultReconnectDelay is the pause between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// Backoff decides how long to wait before reconnect attempt n (zero based,
// reset after every successful open).
type Backoff interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same delay before every attempt.
type FixedBackoff time.Duration

// Next implements Backoff.
func (b FixedBackoff) Next(int) time.Duration {
	return time.Duration(b)
}

// ExponentialBackoff doubles the delay per attempt up to Max. Jitter is the
// fraction (0..1) of the delay randomly subtracted to spread reconnects.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// Next implements Backoff.
func (b ExponentialBackoff) Next(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		d -= time.Duration(rand.Float64() * b.Jitter * float64(d))
	}
	return d
}

// BackoffFromConfig builds the reconnect policy selected in cfg.
func BackoffFromConfig(cfg model.RealtimeConfig) Backoff {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	if cfg.Backoff == "exponential" {
		maxDelay := cfg.MaxDelay
		if maxDelay < delay {
			maxDelay = delay
		}
		return ExponentialBackoff{Base: delay, Max: maxDelay, Jitter: 0.2}
	}

	return FixedBackoff(delay)
}
