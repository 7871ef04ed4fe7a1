package resilience

import (
	"strings"
	"time"
)

// RetryPolicy bounds attempts and exponential backoff for one operation family.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Backoff returns the wait after failed attempt n, counting from 1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	wait := p.InitialBackoff
	for i := 1; i < attempt && wait < p.MaxBackoff; i++ {
		wait = time.Duration(float64(wait) * p.Multiplier)
	}
	return min(wait, p.MaxBackoff)
}

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// RetryOverrides replaces the default policy for operations whose name
	// starts with the key, e.g. "ocr." or "ollama.". The longest prefix wins
	// and zero fields inherit the default.
	RetryOverrides map[string]RetryPolicy

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) defaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    c.RetryMaxAttempts,
		InitialBackoff: c.RetryInitialBackoff,
		MaxBackoff:     c.RetryMaxBackoff,
		Multiplier:     c.RetryMultiplier,
	}
}

func (c Config) retryPolicy(operation string) RetryPolicy {
	policy := c.defaultPolicy()
	matched := ""
	for prefix, override := range c.RetryOverrides {
		if strings.HasPrefix(operation, prefix) && len(prefix) > len(matched) {
			matched = prefix
			policy = override
		}
	}
	return policy
}

func (p RetryPolicy) normalize(def RetryPolicy) RetryPolicy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	retry := c.defaultPolicy().normalize(def.defaultPolicy())
	out.RetryMaxAttempts = retry.MaxAttempts
	out.RetryInitialBackoff = retry.InitialBackoff
	out.RetryMaxBackoff = retry.MaxBackoff
	out.RetryMultiplier = retry.Multiplier

	if len(c.RetryOverrides) > 0 {
		out.RetryOverrides = make(map[string]RetryPolicy, len(c.RetryOverrides))
		for prefix, override := range c.RetryOverrides {
			out.RetryOverrides[prefix] = override.normalize(retry)
		}
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
