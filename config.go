package onion

import (
	"errors"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

type (
	// ClientConfig is the declarative form of a client's handler stack.
	// Embed it in your own config struct for JSON or YAML unmarshaling, then
	// call [BuildHandlers] or [NewFromConfig].
	ClientConfig struct {
		// BaseURL is prepended to relative targets.
		// Optional. Example: "https://api.example.com".
		BaseURL *string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
		// DefaultHeaders are set unless a call sets them itself.
		// Optional. Example: {"Accept": "application/json"}.
		DefaultHeaders map[string]string `json:"default_headers,omitempty" yaml:"default_headers,omitempty"`
		// Timeout bounds each call including all retries.
		// Optional. Parsed via time.ParseDuration. Example: "5s".
		Timeout *string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
		// CircuitBreaker configures the circuit breaker.
		// Optional. Example: {"failure_threshold": 5}.
		CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
		// RateLimit is the maximum calls per second.
		// Optional. Example: 100.
		RateLimit *float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
		// Burst is the rate limiter bucket size. Defaults to 1; requires RateLimit.
		// Optional. Example: 10.
		Burst *int `json:"burst,omitempty" yaml:"burst,omitempty"`
		// Bulkhead is the maximum concurrent calls.
		// Optional. Example: 10.
		Bulkhead *int `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
		// Retry configures the retry handler.
		// Optional. Example: {"max_attempts": 3, "backoff": "exponential"}.
		Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
		// ThrowErrors escalates 4xx/5xx responses to errors.
		// Optional. Example: true.
		ThrowErrors *bool `json:"throw_errors,omitempty" yaml:"throw_errors,omitempty"`
	}

	// CircuitBreakerConfig holds circuit breaker configuration values.
	CircuitBreakerConfig struct {
		// RecoveryTimeout is the duration the breaker stays open.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		RecoveryTimeout *string `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty"`
		// FailureThreshold is the number of failures before opening.
		// Optional. Example: 5.
		FailureThreshold *int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
		// HalfOpenMaxAttempts is the number of probes needed to close.
		// Optional. Example: 2.
		HalfOpenMaxAttempts *int `json:"half_open_max_attempts,omitempty" yaml:"half_open_max_attempts,omitempty"`
	}

	// RetryConfig holds retry configuration values. Retries use
	// [RetryTransient], so only transient failures are retried.
	RetryConfig struct {
		// MaxAttempts is the total number of attempts.
		// Required. Example: 3.
		MaxAttempts *int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
		// Backoff is the backoff strategy name.
		// Optional. One of: "constant", "exponential", "linear",
		// "exponential_jitter". Requires BaseDelay.
		Backoff *string `json:"backoff,omitempty" yaml:"backoff,omitempty"`
		// BaseDelay is the base delay for backoff calculation.
		// Optional. Parsed via time.ParseDuration. Example: "100ms".
		BaseDelay *string `json:"base_delay,omitempty" yaml:"base_delay,omitempty"`
		// MaxDelay caps the backoff delay.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		MaxDelay *string `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
		// PerAttemptTimeout bounds each attempt separately.
		// Optional. Parsed via time.ParseDuration. Example: "1s".
		PerAttemptTimeout *string `json:"per_attempt_timeout,omitempty" yaml:"per_attempt_timeout,omitempty"`
	}
)

// LoadConfig reads and validates a JSON client configuration file.
func LoadConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("onion: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes and validates a JSON client configuration, so errors
// surface at load time rather than on the first call.
func ParseConfig(data []byte) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("onion: parse config: %w", err)
	}

	if _, err := BuildHandlers(&cfg); err != nil {
		return nil, fmt.Errorf("onion: %w", err)
	}

	return &cfg, nil
}

// NewFromConfig creates a [Client] whose handlers are built from cfg. opts
// are applied first; handlers they register end up outside the configured
// ones.
func NewFromConfig(cfg *ClientConfig, opts ...Option) (*Client, error) {
	handlers, err := BuildHandlers(cfg)
	if err != nil {
		return nil, fmt.Errorf("onion: %w", err)
	}

	return New(opts...).Use(handlers...), nil
}

// BuildHandlers converts cfg into an ordered handler stack, outermost first:
//
//	url prefix, default headers, timeout, circuit breaker, rate limit,
//	bulkhead, retry, per-attempt timeout, throw errors
//
// The overall timeout therefore covers every retry, the breaker counts a
// call once after retries, and escalated HTTP errors reach the retry
// decision.
func BuildHandlers(cfg *ClientConfig) ([]Handler, error) {
	var handlers []Handler

	if cfg.BaseURL != nil {
		handlers = append(handlers, URLPrefix(*cfg.BaseURL))
	}

	if len(cfg.DefaultHeaders) > 0 {
		handlers = append(handlers, DefaultHeaders(cfg.DefaultHeaders))
	}

	if cfg.Timeout != nil {
		d, err := time.ParseDuration(*cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}

		handlers = append(handlers, Timeout(d))
	}

	if cfg.CircuitBreaker != nil {
		cb, err := buildCircuitBreaker(cfg.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("circuit_breaker.%w", err)
		}

		handlers = append(handlers, cb.Handler())
	}

	if cfg.RateLimit != nil {
		if *cfg.RateLimit <= 0 {
			return nil, fmt.Errorf("rate_limit: must be positive, got %v", *cfg.RateLimit)
		}

		burst := 1
		if cfg.Burst != nil {
			burst = *cfg.Burst
		}

		if burst < 1 {
			return nil, fmt.Errorf("burst: must be at least 1, got %d", burst)
		}

		handlers = append(handlers, NewRateLimit(*cfg.RateLimit, burst))
	} else if cfg.Burst != nil {
		return nil, errors.New("burst: requires rate_limit")
	}

	if cfg.Bulkhead != nil {
		if *cfg.Bulkhead < 1 {
			return nil, fmt.Errorf("bulkhead: must be at least 1, got %d", *cfg.Bulkhead)
		}

		handlers = append(handlers, Bulkhead(*cfg.Bulkhead))
	}

	if cfg.Retry != nil {
		retryHandlers, err := buildRetry(cfg.Retry)
		if err != nil {
			return nil, fmt.Errorf("retry: %w", err)
		}

		handlers = append(handlers, retryHandlers...)
	}

	if cfg.ThrowErrors != nil && *cfg.ThrowErrors {
		handlers = append(handlers, ThrowErrors())
	}

	return handlers, nil
}

func buildCircuitBreaker(c *CircuitBreakerConfig) (*CircuitBreaker, error) {
	var opts []CircuitBreakerOption

	if c.FailureThreshold != nil {
		if *c.FailureThreshold < 1 {
			return nil, fmt.Errorf("failure_threshold: must be at least 1, got %d", *c.FailureThreshold)
		}

		opts = append(opts, FailureThreshold(*c.FailureThreshold))
	}

	if c.RecoveryTimeout != nil {
		d, err := time.ParseDuration(*c.RecoveryTimeout)
		if err != nil {
			return nil, fmt.Errorf("recovery_timeout: %w", err)
		}

		if d <= 0 {
			return nil, fmt.Errorf("recovery_timeout: must be positive, got %s", d)
		}

		opts = append(opts, RecoveryTimeout(d))
	}

	if c.HalfOpenMaxAttempts != nil {
		if *c.HalfOpenMaxAttempts < 1 {
			return nil, fmt.Errorf("half_open_max_attempts: must be at least 1, got %d", *c.HalfOpenMaxAttempts)
		}

		opts = append(opts, HalfOpenMaxAttempts(*c.HalfOpenMaxAttempts))
	}

	return NewCircuitBreaker(opts...), nil
}

// buildRetry returns the retry handler, followed by the per-attempt timeout
// when one is configured.
func buildRetry(rc *RetryConfig) ([]Handler, error) {
	if rc.MaxAttempts == nil {
		return nil, errors.New("max_attempts is required")
	}

	if *rc.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts: must be at least 1, got %d", *rc.MaxAttempts)
	}

	var opts []RetryOption

	if rc.Backoff != nil {
		strategy, err := parseBackoffStrategy(*rc.Backoff, rc.BaseDelay)
		if err != nil {
			return nil, err
		}

		opts = append(opts, WithBackoff(strategy))
	}

	if rc.MaxDelay != nil {
		d, err := time.ParseDuration(*rc.MaxDelay)
		if err != nil {
			return nil, fmt.Errorf("max_delay: %w", err)
		}

		opts = append(opts, MaxDelay(d))
	}

	handlers := []Handler{Retry(RetryTransient(*rc.MaxAttempts), opts...)}

	if rc.PerAttemptTimeout != nil {
		d, err := time.ParseDuration(*rc.PerAttemptTimeout)
		if err != nil {
			return nil, fmt.Errorf("per_attempt_timeout: %w", err)
		}

		handlers = append(handlers, Timeout(d))
	}

	return handlers, nil
}

// parseBackoffStrategy maps a backoff name plus base delay to a
// BackoffStrategy.
//
//nolint:ireturn // returns interface by design for strategy pattern
func parseBackoffStrategy(name string, baseDelay *string) (BackoffStrategy, error) {
	if baseDelay == nil {
		return nil, fmt.Errorf("base_delay is required with backoff %q", name)
	}

	base, err := time.ParseDuration(*baseDelay)
	if err != nil {
		return nil, fmt.Errorf("base_delay: %w", err)
	}

	switch name {
	case "constant":
		return ConstantBackoff(base), nil
	case "exponential":
		return ExponentialBackoff(base), nil
	case "linear":
		return LinearBackoff(base), nil
	case "exponential_jitter":
		return ExponentialJitterBackoff(base), nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy: %q", name)
	}
}
