package retry

import (
	"testing"
	"time"
)

func TestPolicy_Backoff(t *testing.T) {
	exp := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Mode: ModeExponential}
	lin := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Mode: ModeLinear}

	tests := []struct {
		name   string
		policy Policy
		n      int
		sample float64
		want   time.Duration
	}{
		{"exp first", exp, 1, 0, 100 * time.Millisecond},
		{"exp second", exp, 2, 0, 200 * time.Millisecond},
		{"exp third", exp, 3, 0, 400 * time.Millisecond},
		{"exp fourth", exp, 4, 0, 800 * time.Millisecond},
		{"exp capped", exp, 5, 0, time.Second},
		{"exp far capped", exp, 200, 0, time.Second},
		{"linear first", lin, 1, 0, 100 * time.Millisecond},
		{"linear third", lin, 3, 0, 300 * time.Millisecond},
		{"linear capped", lin, 20, 0, time.Second},
		{"zero n treated as first", exp, 0, 0, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Backoff(tt.n, tt.sample); got != tt.want {
				t.Errorf("Backoff(%d) = %s, want %s", tt.n, got, tt.want)
			}
		})
	}
}

func TestPolicy_BackoffJitter(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Mode: ModeExponential, Jitter: 0.5}

	if got := p.Backoff(1, 1); got != 150*time.Millisecond {
		t.Errorf("Expected +50%% jitter, got %s", got)
	}
	if got := p.Backoff(1, -1); got != 50*time.Millisecond {
		t.Errorf("Expected -50%% jitter, got %s", got)
	}
	if got := p.Backoff(1, 5); got != 150*time.Millisecond {
		t.Errorf("Expected sample clamped to 1, got %s", got)
	}
	if got := p.Backoff(4, 1); got != time.Second {
		t.Errorf("Expected jittered delay capped at max, got %s", got)
	}
}

func TestPolicy_BackoffNonDecreasing(t *testing.T) {
	for _, mode := range []Mode{ModeExponential, ModeLinear} {
		p := Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: 5 * time.Second, Mode: mode}
		prev := time.Duration(0)
		for n := 1; n <= 30; n++ {
			d := p.Backoff(n, 0)
			if d < prev {
				t.Errorf("%s: delay decreased at retry %d: %s < %s", mode, n, d, prev)
			}
			prev = d
		}
	}
}

func TestPolicy_DelayForRetryAfter(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, Mode: ModeExponential}

	if got := p.delayFor(1, 0, time.Second); got != time.Second {
		t.Errorf("Expected Retry-After to raise delay to 1s, got %s", got)
	}
	if got := p.delayFor(1, 0, time.Minute); got != 2*time.Second {
		t.Errorf("Expected Retry-After capped at 2s, got %s", got)
	}
	if got := p.delayFor(3, 0, 10*time.Millisecond); got != 400*time.Millisecond {
		t.Errorf("Expected smaller hint to be ignored, got %s", got)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"zero value", Policy{}, false},
		{"negative retries", Policy{MaxRetries: -1}, true},
		{"negative base", Policy{BaseDelay: -time.Second}, true},
		{"base above max", Policy{BaseDelay: 2 * time.Second, MaxDelay: time.Second}, true},
		{"bad mode", Policy{Mode: "fibonacci"}, true},
		{"jitter above one", Policy{Jitter: 1.5}, true},
		{"negative jitter", Policy{Jitter: -0.1}, true},
		{"negative max elapsed", Policy{MaxElapsed: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPolicy_WithDefaults(t *testing.T) {
	p := Policy{}.WithDefaults()
	if p.BaseDelay != DefaultBaseDelay {
		t.Errorf("Expected base delay %s, got %s", DefaultBaseDelay, p.BaseDelay)
	}
	if p.MaxDelay != DefaultMaxDelay {
		t.Errorf("Expected max delay %s, got %s", DefaultMaxDelay, p.MaxDelay)
	}
	if p.Mode != ModeExponential {
		t.Errorf("Expected exponential mode, got %s", p.Mode)
	}
	if p.MaxRetries != 0 {
		t.Errorf("MaxRetries should be left alone, got %d", p.MaxRetries)
	}
}
