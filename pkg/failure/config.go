package failure

import (
	"fmt"
	"regexp"
	"time"

	"github.com/edekker/vigil/pkg/models"
)

// Config controls strategy selection and every recovery mechanism the
// handler can apply.
type Config struct {
	// GlobalStrategy applies when no severity or category mapping matches.
	GlobalStrategy models.RecoveryStrategy
	// CategoryStrategies maps failure categories to strategies.
	CategoryStrategies map[models.Category]models.RecoveryStrategy
	// SeverityStrategies maps failure severities to strategies. Severity
	// mappings take precedence over category mappings.
	SeverityStrategies map[models.Severity]models.RecoveryStrategy
	// Retry configures the retry/backoff strategies.
	Retry RetryConfig
	// CircuitBreaker configures the per-task breakers.
	CircuitBreaker BreakerConfig
	// Escalation configures escalation levels and actions.
	Escalation EscalationConfig
	// Fallback configures fallback conditions and strategies.
	Fallback FallbackConfig
	// Retention bounds how much failure state is kept in memory.
	Retention RetentionConfig
}

// RetryConfig shapes the shared retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of operation invocations allowed.
	MaxAttempts int
	// InitialDelay is the first backoff delay.
	InitialDelay time.Duration
	// MaxDelay caps exponential growth.
	MaxDelay time.Duration
	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64
	// Jitter adds a uniform random amount up to 10% of the current delay.
	Jitter bool
	// RetryableErrors lists error names that are always retried.
	RetryableErrors []string
	// NonRetryableErrors lists error names that are never retried.
	// This list wins over RetryableErrors and the built-in defaults.
	NonRetryableErrors []string
}

// BreakerConfig shapes the circuit breaker automaton.
type BreakerConfig struct {
	// FailureThreshold is the rolling-window failure count that opens the
	// breaker.
	FailureThreshold int
	// RecoveryTimeout is how long an open breaker rejects calls before the
	// next call may probe.
	RecoveryTimeout time.Duration
	// MonitoringWindow bounds the rolling failure window while closed.
	MonitoringWindow time.Duration
	// HalfOpenMaxAttempts is the number of failed half-open probes that
	// force the breaker open again.
	HalfOpenMaxAttempts int
}

// EscalationConfig shapes the escalation strategy.
type EscalationConfig struct {
	// Levels pairs unresolved-failure thresholds with actions.
	Levels []EscalationLevel
	// AutoEscalation enables level scanning. When false the strategy goes
	// straight to its retry path.
	AutoEscalation bool
	// EscalationDelay is an optional pause before actions run.
	EscalationDelay time.Duration
}

// EscalationLevel pairs a failure-count threshold with actions to take
// once crossed.
type EscalationLevel struct {
	// Threshold is the unresolved-failure count that selects this level.
	Threshold int
	// Actions lists what to do: "log", "notify", or "fallback".
	Actions []string
	// Notify lists notification targets for the "notify" action.
	Notify []string
	// Timeout bounds how long the level's actions may run. Zero means no bound.
	Timeout time.Duration
}

// FallbackType names a fallback substitution.
type FallbackType string

const (
	// FallbackSkip substitutes a synthetic skipped-status result.
	FallbackSkip FallbackType = "skip"
	// FallbackDefault substitutes a synthetic passed-status result carrying
	// a configured default value.
	FallbackDefault FallbackType = "default"
	// FallbackAlternative invokes a pluggable alternate operation.
	FallbackAlternative FallbackType = "alternative"
)

// Valid returns true if the fallback type is a known value.
func (t FallbackType) Valid() bool {
	switch t {
	case FallbackSkip, FallbackDefault, FallbackAlternative:
		return true
	default:
		return false
	}
}

// FallbackStrategy is one substitution to try, in configuration order.
type FallbackStrategy struct {
	// Type selects the substitution.
	Type FallbackType
	// Value is the default value attached by FallbackDefault.
	Value any
}

// FallbackCondition gates the fallback engine. Empty fields match anything;
// all non-empty fields must match.
type FallbackCondition struct {
	// Severity to match, if set.
	Severity models.Severity
	// Category to match, if set.
	Category models.Category
	// MessagePattern is an optional regular expression matched against the
	// error message.
	MessagePattern string
}

// FallbackConfig shapes the fallback strategy.
type FallbackConfig struct {
	// Strategies are tried in order; the first that does not fail wins.
	Strategies []FallbackStrategy
	// Conditions gate the engine. With no matching condition the original
	// error is rethrown unchanged.
	Conditions []FallbackCondition
}

// RetentionConfig bounds in-memory failure state. Zero values mean
// unbounded, matching the historical behavior.
type RetentionConfig struct {
	// MaxRecords caps stored failure records; the oldest are evicted first.
	MaxRecords int
	// RecordTTL evicts resolved records older than this on insert.
	RecordTTL time.Duration
	// MaxBreakers caps tracked circuit breakers; the least recently used
	// is evicted first.
	MaxBreakers int
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		GlobalStrategy: models.StrategyExponentialBackoff,
		SeverityStrategies: map[models.Severity]models.RecoveryStrategy{
			models.SeverityCritical: models.StrategyEscalate,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialDelay:      time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2,
			Jitter:            true,
		},
		CircuitBreaker: BreakerConfig{
			FailureThreshold:    5,
			RecoveryTimeout:     60 * time.Second,
			MonitoringWindow:    60 * time.Second,
			HalfOpenMaxAttempts: 3,
		},
		Escalation: EscalationConfig{
			AutoEscalation: true,
			Levels: []EscalationLevel{
				{Threshold: 3, Actions: []string{"log"}},
				{Threshold: 5, Actions: []string{"log", "notify"}},
				{Threshold: 10, Actions: []string{"log", "notify", "fallback"}},
			},
		},
	}
}

// withDefaults fills in zero-valued fields without overriding explicit
// choices.
func (c Config) withDefaults() Config {
	if c.GlobalStrategy == "" {
		c.GlobalStrategy = models.StrategyExponentialBackoff
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = time.Second
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Retry.BackoffMultiplier <= 0 {
		c.Retry.BackoffMultiplier = 2
	}
	if c.CircuitBreaker.FailureThreshold <= 0 {
		c.CircuitBreaker.FailureThreshold = 5
	}
	if c.CircuitBreaker.RecoveryTimeout <= 0 {
		c.CircuitBreaker.RecoveryTimeout = 60 * time.Second
	}
	if c.CircuitBreaker.MonitoringWindow <= 0 {
		c.CircuitBreaker.MonitoringWindow = 60 * time.Second
	}
	if c.CircuitBreaker.HalfOpenMaxAttempts <= 0 {
		c.CircuitBreaker.HalfOpenMaxAttempts = 3
	}
	return c
}

// Validate reports configuration the handler cannot act on.
func (c Config) Validate() error {
	if !c.GlobalStrategy.Valid() {
		return fmt.Errorf("invalid global strategy %q", c.GlobalStrategy)
	}
	for cat, s := range c.CategoryStrategies {
		if !cat.Valid() {
			return fmt.Errorf("invalid category %q in category strategies", cat)
		}
		if !s.Valid() {
			return fmt.Errorf("invalid strategy %q for category %q", s, cat)
		}
	}
	for sev, s := range c.SeverityStrategies {
		if !sev.Valid() {
			return fmt.Errorf("invalid severity %q in severity strategies", sev)
		}
		if !s.Valid() {
			return fmt.Errorf("invalid strategy %q for severity %q", s, sev)
		}
	}
	for i, level := range c.Escalation.Levels {
		if level.Threshold < 0 {
			return fmt.Errorf("escalation level %d: negative threshold %d", i, level.Threshold)
		}
		for _, action := range level.Actions {
			switch action {
			case "log", "notify", "fallback":
			default:
				return fmt.Errorf("escalation level %d: unknown action %q", i, action)
			}
		}
	}
	for i, s := range c.Fallback.Strategies {
		if !s.Type.Valid() {
			return fmt.Errorf("fallback strategy %d: unknown type %q", i, s.Type)
		}
	}
	for i, cond := range c.Fallback.Conditions {
		if cond.Severity != "" && !cond.Severity.Valid() {
			return fmt.Errorf("fallback condition %d: invalid severity %q", i, cond.Severity)
		}
		if cond.Category != "" && !cond.Category.Valid() {
			return fmt.Errorf("fallback condition %d: invalid category %q", i, cond.Category)
		}
		if cond.MessagePattern != "" {
			if _, err := regexp.Compile(cond.MessagePattern); err != nil {
				return fmt.Errorf("fallback condition %d: bad message pattern: %w", i, err)
			}
		}
	}
	if c.Retention.MaxRecords < 0 || c.Retention.MaxBreakers < 0 {
		return fmt.Errorf("retention limits must not be negative")
	}
	return nil
}
