// Package config loads the engine and failure-policy configuration from
// YAML files and environment variables. It supports XDG config paths,
// project-level overrides, and a VIGIL_ environment prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full file-backed configuration surface.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Failure FailureConfig `mapstructure:"failure" yaml:"failure"`
}

// LoggingConfig selects the log backend's level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EngineConfig holds the validation engine settings. Durations are strings
// in Go duration syntax ("30s", "1m").
type EngineConfig struct {
	EnabledCategories        []string `mapstructure:"enabled_categories" yaml:"enabled_categories"`
	MaxConcurrentValidations int      `mapstructure:"max_concurrent_validations" yaml:"max_concurrent_validations"`
	Timeout                  string   `mapstructure:"timeout" yaml:"timeout"`
	Retries                  int      `mapstructure:"retries" yaml:"retries"`
	RetryBaseDelay           string   `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	FailOnError              bool     `mapstructure:"fail_on_error" yaml:"fail_on_error"`
	ReportingEnabled         bool     `mapstructure:"reporting_enabled" yaml:"reporting_enabled"`
	StrictDependencies       bool     `mapstructure:"strict_dependencies" yaml:"strict_dependencies"`
	Mode                     string   `mapstructure:"mode" yaml:"mode"`
}

// FailureConfig holds the failure-policy settings.
type FailureConfig struct {
	GlobalStrategy     string            `mapstructure:"global_strategy" yaml:"global_strategy"`
	CategoryStrategies map[string]string `mapstructure:"category_strategies" yaml:"category_strategies"`
	SeverityStrategies map[string]string `mapstructure:"severity_strategies" yaml:"severity_strategies"`
	Retry              RetryConfig       `mapstructure:"retry" yaml:"retry"`
	CircuitBreaker     BreakerConfig     `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
	Escalation         EscalationConfig  `mapstructure:"escalation" yaml:"escalation"`
	Fallback           FallbackConfig    `mapstructure:"fallback" yaml:"fallback"`
	Retention          RetentionConfig   `mapstructure:"retention" yaml:"retention"`
}

// RetryConfig shapes the retry strategies.
type RetryConfig struct {
	MaxAttempts        int      `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay       string   `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay           string   `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffMultiplier  float64  `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	Jitter             bool     `mapstructure:"jitter" yaml:"jitter"`
	RetryableErrors    []string `mapstructure:"retryable_errors" yaml:"retryable_errors"`
	NonRetryableErrors []string `mapstructure:"non_retryable_errors" yaml:"non_retryable_errors"`
}

// BreakerConfig shapes the circuit breakers.
type BreakerConfig struct {
	FailureThreshold    int    `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeout     string `mapstructure:"recovery_timeout" yaml:"recovery_timeout"`
	MonitoringWindow    string `mapstructure:"monitoring_window" yaml:"monitoring_window"`
	HalfOpenMaxAttempts int    `mapstructure:"half_open_max_attempts" yaml:"half_open_max_attempts"`
}

// EscalationConfig shapes the escalation levels.
type EscalationConfig struct {
	AutoEscalation  bool              `mapstructure:"auto_escalation" yaml:"auto_escalation"`
	EscalationDelay string            `mapstructure:"escalation_delay" yaml:"escalation_delay"`
	Levels          []EscalationLevel `mapstructure:"levels" yaml:"levels"`
}

// EscalationLevel pairs a threshold with actions and notification targets.
type EscalationLevel struct {
	Threshold int      `mapstructure:"threshold" yaml:"threshold"`
	Actions   []string `mapstructure:"actions" yaml:"actions"`
	Notify    []string `mapstructure:"notify" yaml:"notify"`
	Timeout   string   `mapstructure:"timeout" yaml:"timeout"`
}

// FallbackConfig shapes the fallback engine.
type FallbackConfig struct {
	Strategies []FallbackStrategy `mapstructure:"strategies" yaml:"strategies"`
	Conditions []FallbackCondition `mapstructure:"conditions" yaml:"conditions"`
}

// FallbackStrategy is one substitution to try.
type FallbackStrategy struct {
	Type  string `mapstructure:"type" yaml:"type"`
	Value any    `mapstructure:"value" yaml:"value"`
}

// FallbackCondition gates the fallback engine.
type FallbackCondition struct {
	Severity       string `mapstructure:"severity" yaml:"severity"`
	Category       string `mapstructure:"category" yaml:"category"`
	MessagePattern string `mapstructure:"message_pattern" yaml:"message_pattern"`
}

// RetentionConfig bounds in-memory failure state.
type RetentionConfig struct {
	MaxRecords  int    `mapstructure:"max_records" yaml:"max_records"`
	RecordTTL   string `mapstructure:"record_ttl" yaml:"record_ttl"`
	MaxBreakers int    `mapstructure:"max_breakers" yaml:"max_breakers"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (VIGIL_ prefix, dots become underscores)
//  2. Project config (.vigil.yaml in the current directory or a parent)
//  3. User config (~/.config/vigil/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing and
// embedding callers that manage their own paths).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// setDefaults configures the built-in default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.enabled_categories", []string{})
	v.SetDefault("engine.max_concurrent_validations", 3)
	v.SetDefault("engine.timeout", "30s")
	v.SetDefault("engine.retries", 2)
	v.SetDefault("engine.retry_base_delay", "1s")
	v.SetDefault("engine.fail_on_error", false)
	v.SetDefault("engine.reporting_enabled", true)
	v.SetDefault("engine.strict_dependencies", false)
	v.SetDefault("engine.mode", "concurrent")

	v.SetDefault("failure.global_strategy", "exponential_backoff")
	v.SetDefault("failure.retry.max_attempts", 3)
	v.SetDefault("failure.retry.initial_delay", "1s")
	v.SetDefault("failure.retry.max_delay", "30s")
	v.SetDefault("failure.retry.backoff_multiplier", 2.0)
	v.SetDefault("failure.retry.jitter", true)
	v.SetDefault("failure.circuit_breaker.failure_threshold", 5)
	v.SetDefault("failure.circuit_breaker.recovery_timeout", "60s")
	v.SetDefault("failure.circuit_breaker.monitoring_window", "60s")
	v.SetDefault("failure.circuit_breaker.half_open_max_attempts", 3)
	v.SetDefault("failure.escalation.auto_escalation", true)
}

// userConfigDir returns the XDG config directory for vigil.
func userConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vigil")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vigil")
	}
	return filepath.Join(home, ".config", "vigil")
}

// findProjectConfig searches for .vigil.yaml in the current directory and
// its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".vigil.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
