package retry

import (
	"fmt"
	"math"
	"time"
)

// Mode selects how the base delay grows between attempts.
type Mode string

const (
	// ModeExponential doubles the delay on each retry: base * 2^(n-1).
	ModeExponential Mode = "exponential"

	// ModeLinear grows the delay linearly: base * n.
	ModeLinear Mode = "linear"
)

// Defaults applied by Policy.WithDefaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 30 * time.Second
	DefaultJitter     = 0.2
)

// Policy controls how many times and how long the executor waits between
// attempts.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	// MaxRetries=3 means at most 4 invocations.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps every computed delay, Retry-After hints included.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Mode is exponential or linear.
	Mode Mode `yaml:"mode"`

	// Jitter spreads each delay by up to ±Jitter*delay. Must be in [0, 1].
	Jitter float64 `yaml:"jitter"`

	// MaxElapsed stops retrying once the next attempt would start later than
	// this long after the first one. Zero disables the overall deadline.
	MaxElapsed time.Duration `yaml:"max_elapsed"`
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Mode:       ModeExponential,
		Jitter:     DefaultJitter,
	}
}

// WithDefaults fills zero-valued delay and mode fields. MaxRetries and Jitter
// are left alone since zero is meaningful for both.
func (p Policy) WithDefaults() Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Mode == "" {
		p.Mode = ModeExponential
	}
	return p
}

// Validate checks the policy for invalid values.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base_delay must be >= 0, got %s", p.BaseDelay)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("max_delay must be >= 0, got %s", p.MaxDelay)
	}
	if p.MaxDelay > 0 && p.BaseDelay > p.MaxDelay {
		return fmt.Errorf("base_delay (%s) must not exceed max_delay (%s)", p.BaseDelay, p.MaxDelay)
	}
	switch p.Mode {
	case "", ModeExponential, ModeLinear:
	default:
		return fmt.Errorf("mode must be exponential or linear, got %q", p.Mode)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1, got %v", p.Jitter)
	}
	if p.MaxElapsed < 0 {
		return fmt.Errorf("max_elapsed must be >= 0, got %s", p.MaxElapsed)
	}
	return nil
}

// Backoff returns the delay before retry number n (1-based). sample is a
// jitter sample in [-1, 1]; pass 0 for the unjittered delay.
func (p Policy) Backoff(n int, sample float64) time.Duration {
	if n < 1 {
		n = 1
	}

	var d float64
	switch p.Mode {
	case ModeLinear:
		d = float64(p.BaseDelay) * float64(n)
	default:
		d = float64(p.BaseDelay) * math.Pow(2, float64(n-1))
	}

	if p.Jitter > 0 {
		sample = math.Max(-1, math.Min(1, sample))
		d += d * p.Jitter * sample
	}

	if d < 0 {
		d = 0
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// delayFor applies a Retry-After hint on top of the computed backoff.
// The hint raises the delay but never beyond MaxDelay.
func (p Policy) delayFor(n int, sample float64, hint time.Duration) time.Duration {
	d := p.Backoff(n, sample)
	if hint > d {
		d = hint
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
