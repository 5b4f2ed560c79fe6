package session

import "time"

const (
	defaultBackoffBase = time.Second
	defaultBackoffCap  = 30 * time.Second
)

// Policy computes the delay before reconnect attempt n. Attempts are 1-based.
type Policy interface {
	Delay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay per attempt: min(base * 2^n, cap).
type ExponentialBackoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay executes the delay method.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = defaultBackoffBase
	}
	cap := b.Cap
	if cap <= 0 {
		cap = defaultBackoffCap
	}
	if attempt < 1 {
		attempt = 1
	}
	// Shifting past 62 bits would wrap; the cap applies long before that.
	if attempt > 31 {
		return cap
	}
	delay := base * (1 << uint(attempt))
	if delay <= 0 || delay > cap {
		return cap
	}
	return delay
}

// LinearBackoff grows the delay by a fixed step per attempt: n * base.
type LinearBackoff struct {
	Base time.Duration
}

// Delay executes the delay method.
func (b LinearBackoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = defaultBackoffBase
	}
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * base
}
