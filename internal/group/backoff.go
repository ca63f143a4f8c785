package group

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds the retry schedule for dialing the coordination
// service. Workers start concurrently with the orchestrator's listener, so
// the first dials may race it.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	JitterPct  float64 // jitter as a fraction of the delay, e.g. 0.4 = ±20%
}

// DefaultBackoffConfig returns sensible defaults for coordination dialing.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    25 * time.Millisecond,
		Max:        1 * time.Second,
		Multiplier: 1.7,
		JitterPct:  0.4,
	}
}

// dialBackoff calculates exponential delays with jitter. Seeding with the
// worker's process index keeps jitter deterministic per worker and spreads
// simultaneous dial storms.
type dialBackoff struct {
	config   BackoffConfig
	attempts int
	rng      *rand.Rand
}

func newDialBackoff(processIndex int, cfg BackoffConfig) *dialBackoff {
	return &dialBackoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(int64(processIndex) + 1)),
	}
}

// Next returns the next delay and increments the attempt counter.
func (b *dialBackoff) Next() time.Duration {
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))
	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}
	if delay < 0 {
		delay = 0
	}

	b.attempts++
	return time.Duration(delay)
}

// Attempts returns how many delays have been handed out.
func (b *dialBackoff) Attempts() int {
	return b.attempts
}
