package models

import "time"

// RecoveryStrategy names a way of handling a validation failure.
type RecoveryStrategy string

const (
	// StrategyImmediateRetry retries with no delay between attempts.
	StrategyImmediateRetry RecoveryStrategy = "immediate_retry"
	// StrategyLinearBackoff retries with delays growing linearly per attempt.
	StrategyLinearBackoff RecoveryStrategy = "linear_backoff"
	// StrategyExponentialBackoff retries with delays growing geometrically,
	// capped at a configured maximum.
	StrategyExponentialBackoff RecoveryStrategy = "exponential_backoff"
	// StrategyCircuitBreaker routes the operation through a per-task circuit
	// breaker that rejects calls while open.
	StrategyCircuitBreaker RecoveryStrategy = "circuit_breaker"
	// StrategyEscalate runs escalation actions based on how many unresolved
	// failures the task has accumulated, then retries.
	StrategyEscalate RecoveryStrategy = "escalate"
	// StrategyFallback substitutes an alternative outcome when conditions match.
	StrategyFallback RecoveryStrategy = "fallback"
	// StrategyIgnore records the failure and rethrows the original error.
	StrategyIgnore RecoveryStrategy = "ignore"
)

// Valid returns true if the strategy is a known value.
func (s RecoveryStrategy) Valid() bool {
	switch s {
	case StrategyImmediateRetry, StrategyLinearBackoff, StrategyExponentialBackoff,
		StrategyCircuitBreaker, StrategyEscalate, StrategyFallback, StrategyIgnore:
		return true
	default:
		return false
	}
}

// FailureRecord is the durable trace of one handled validation failure.
type FailureRecord struct {
	// ID is the unique identifier for this record.
	ID string `json:"id"`
	// TaskID identifies the task whose validation failed.
	TaskID string `json:"task_id"`
	// ErrorName is the classified name of the error (e.g. TimeoutError).
	ErrorName string `json:"error_name"`
	// ErrorMessage is the message of the original error.
	ErrorMessage string `json:"error_message"`
	// Category is the classified functional area of the failure.
	Category Category `json:"category"`
	// Severity is the classified severity of the failure.
	Severity Severity `json:"severity"`
	// Context is the task context captured when the failure was recorded.
	Context *TaskContext `json:"context,omitempty"`
	// Timestamp is when the failure was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Resolved reports whether a recovery strategy restored the operation.
	Resolved bool `json:"resolved"`
	// Strategy is the recovery strategy that was applied.
	Strategy RecoveryStrategy `json:"strategy,omitempty"`
	// Attempts counts operation invocations made while handling this failure.
	Attempts int `json:"attempts"`
	// RecoveryTime is how long the failure took to resolve, set on resolution.
	RecoveryTime time.Duration `json:"recovery_time,omitempty"`
	// Metadata carries handler details such as the final handling error.
	Metadata map[string]any `json:"metadata,omitempty"`
}
