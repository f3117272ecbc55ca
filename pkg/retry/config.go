package retry

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config controls the retry behavior of an Executor. The zero value is
// usable: unset fields fall back to the defaults below.
type Config struct {
	// MaxAttempts is the total number of tries, including the first one.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// Multiplier grows the delay after every retryable failure.
	Multiplier float64
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Jitter randomizes each delay into [d*(1-Jitter), d*(1+Jitter)].
	// Zero disables jitter.
	Jitter float64
}

// DefaultConfig returns the retry policy used when callers pass a zero
// Config.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		Multiplier:     2.0,
		MaxBackoff:     30 * time.Second,
		Jitter:         0.2,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.Multiplier == 0 {
		c.Multiplier = def.Multiplier
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = def.MaxBackoff
	}
}

// Validate rejects configurations that would loop forever or shrink delays.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry config: MaxAttempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("retry config: Multiplier must be >= 1, got %g", c.Multiplier)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("retry config: MaxBackoff %s must be >= InitialBackoff %s", c.MaxBackoff, c.InitialBackoff)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("retry config: Jitter must be within [0, 1], got %g", c.Jitter)
	}
	return nil
}

// newBackOff builds the delay generator for one Executor.Do invocation.
// Successive NextBackOff calls yield min(initial*multiplier^n, max),
// randomized by the jitter fraction.
func (c Config) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialBackoff,
		RandomizationFactor: c.Jitter,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxBackoff,
	}
	b.Reset()
	return b
}
