package config

import (
	"fmt"
	"time"

	"github.com/edekker/vigil/pkg/engine"
	"github.com/edekker/vigil/pkg/failure"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"
)

// EngineConfig converts the file-backed settings into an engine.Config.
func (c *Config) EngineConfig() (engine.Config, error) {
	out := engine.Config{
		MaxConcurrentValidations: c.Engine.MaxConcurrentValidations,
		Retries:                  c.Engine.Retries,
		FailOnError:              c.Engine.FailOnError,
		ReportingEnabled:         c.Engine.ReportingEnabled,
		StrictDependencies:       c.Engine.StrictDependencies,
		Mode:                     c.Engine.Mode,
	}

	for _, raw := range c.Engine.EnabledCategories {
		cat := models.Category(raw)
		if !cat.Valid() {
			return engine.Config{}, fmt.Errorf("engine.enabled_categories: unknown category %q", raw)
		}
		out.EnabledCategories = append(out.EnabledCategories, cat)
	}

	var err error
	if out.Timeout, err = parseDuration("engine.timeout", c.Engine.Timeout); err != nil {
		return engine.Config{}, err
	}
	if out.RetryBaseDelay, err = parseDuration("engine.retry_base_delay", c.Engine.RetryBaseDelay); err != nil {
		return engine.Config{}, err
	}
	return out, nil
}

// FailureConfig converts the file-backed settings into a failure.Config.
func (c *Config) FailureConfig() (failure.Config, error) {
	out := failure.Config{
		GlobalStrategy: models.RecoveryStrategy(c.Failure.GlobalStrategy),
		Retry: failure.RetryConfig{
			MaxAttempts:        c.Failure.Retry.MaxAttempts,
			BackoffMultiplier:  c.Failure.Retry.BackoffMultiplier,
			Jitter:             c.Failure.Retry.Jitter,
			RetryableErrors:    c.Failure.Retry.RetryableErrors,
			NonRetryableErrors: c.Failure.Retry.NonRetryableErrors,
		},
		CircuitBreaker: failure.BreakerConfig{
			FailureThreshold:    c.Failure.CircuitBreaker.FailureThreshold,
			HalfOpenMaxAttempts: c.Failure.CircuitBreaker.HalfOpenMaxAttempts,
		},
		Escalation: failure.EscalationConfig{
			AutoEscalation: c.Failure.Escalation.AutoEscalation,
		},
		Retention: failure.RetentionConfig{
			MaxRecords:  c.Failure.Retention.MaxRecords,
			MaxBreakers: c.Failure.Retention.MaxBreakers,
		},
	}

	if len(c.Failure.CategoryStrategies) > 0 {
		out.CategoryStrategies = make(map[models.Category]models.RecoveryStrategy, len(c.Failure.CategoryStrategies))
		for cat, strategy := range c.Failure.CategoryStrategies {
			out.CategoryStrategies[models.Category(cat)] = models.RecoveryStrategy(strategy)
		}
	}
	if len(c.Failure.SeverityStrategies) > 0 {
		out.SeverityStrategies = make(map[models.Severity]models.RecoveryStrategy, len(c.Failure.SeverityStrategies))
		for sev, strategy := range c.Failure.SeverityStrategies {
			out.SeverityStrategies[models.Severity(sev)] = models.RecoveryStrategy(strategy)
		}
	}

	var err error
	if out.Retry.InitialDelay, err = parseDuration("failure.retry.initial_delay", c.Failure.Retry.InitialDelay); err != nil {
		return failure.Config{}, err
	}
	if out.Retry.MaxDelay, err = parseDuration("failure.retry.max_delay", c.Failure.Retry.MaxDelay); err != nil {
		return failure.Config{}, err
	}
	if out.CircuitBreaker.RecoveryTimeout, err = parseDuration("failure.circuit_breaker.recovery_timeout", c.Failure.CircuitBreaker.RecoveryTimeout); err != nil {
		return failure.Config{}, err
	}
	if out.CircuitBreaker.MonitoringWindow, err = parseDuration("failure.circuit_breaker.monitoring_window", c.Failure.CircuitBreaker.MonitoringWindow); err != nil {
		return failure.Config{}, err
	}
	if out.Escalation.EscalationDelay, err = parseDuration("failure.escalation.escalation_delay", c.Failure.Escalation.EscalationDelay); err != nil {
		return failure.Config{}, err
	}
	if out.Retention.RecordTTL, err = parseDuration("failure.retention.record_ttl", c.Failure.Retention.RecordTTL); err != nil {
		return failure.Config{}, err
	}

	for i, level := range c.Failure.Escalation.Levels {
		timeout, err := parseDuration(fmt.Sprintf("failure.escalation.levels[%d].timeout", i), level.Timeout)
		if err != nil {
			return failure.Config{}, err
		}
		out.Escalation.Levels = append(out.Escalation.Levels, failure.EscalationLevel{
			Threshold: level.Threshold,
			Actions:   level.Actions,
			Notify:    level.Notify,
			Timeout:   timeout,
		})
	}
	for _, s := range c.Failure.Fallback.Strategies {
		out.Fallback.Strategies = append(out.Fallback.Strategies, failure.FallbackStrategy{
			Type:  failure.FallbackType(s.Type),
			Value: s.Value,
		})
	}
	for _, cond := range c.Failure.Fallback.Conditions {
		out.Fallback.Conditions = append(out.Fallback.Conditions, failure.FallbackCondition{
			Severity:       models.Severity(cond.Severity),
			Category:       models.Category(cond.Category),
			MessagePattern: cond.MessagePattern,
		})
	}
	return out, nil
}

// LoggingConfig converts the file-backed settings into a logging.Config.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}

// parseDuration parses a Go duration string, treating empty as zero so
// downstream defaults apply.
func parseDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}
