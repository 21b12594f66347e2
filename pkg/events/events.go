// Package events carries typed notifications emitted by the validation
// engine and the failure handler. Consumers receive them over a buffered
// channel and must drain it promptly; slow consumers lose events rather
// than block validation.
package events

import (
	"time"

	"github.com/edekker/vigil/pkg/models"
)

// Type represents the kind of notification.
type Type string

const (
	// TypeValidationStarted indicates a validation cycle has begun.
	TypeValidationStarted Type = "validationStarted"
	// TypeValidationCompleted indicates a validation cycle finished and a
	// report is available.
	TypeValidationCompleted Type = "validationCompleted"
	// TypeValidationFailed indicates a validation cycle aborted with an error.
	TypeValidationFailed Type = "validationFailed"
	// TypeRuleStarted indicates a rule execution has begun.
	TypeRuleStarted Type = "ruleStarted"
	// TypeRuleCompleted indicates a rule produced a result.
	TypeRuleCompleted Type = "ruleCompleted"
	// TypeRuleFailed indicates a rule exhausted its attempts.
	TypeRuleFailed Type = "ruleFailed"
	// TypeFailureDetected indicates a failure record was created.
	TypeFailureDetected Type = "failureDetected"
	// TypeFailureResolved indicates a recovery strategy succeeded.
	TypeFailureResolved Type = "failureResolved"
	// TypeFailureUnresolved indicates every recovery attempt failed.
	TypeFailureUnresolved Type = "failureUnresolved"
	// TypeRetryAttempt indicates a retry is about to wait and re-invoke.
	TypeRetryAttempt Type = "retryAttempt"
	// TypeRetrySuccess indicates a retried operation succeeded.
	TypeRetrySuccess Type = "retrySuccess"
	// TypeCircuitBreakerOpened indicates a breaker tripped open.
	TypeCircuitBreakerOpened Type = "circuitBreakerOpened"
	// TypeFallbackAttempt indicates a fallback strategy is being tried.
	TypeFallbackAttempt Type = "fallbackAttempt"
	// TypeEscalationTriggered indicates an escalation level was selected.
	TypeEscalationTriggered Type = "escalationTriggered"
)

// Event is a single notification.
// Only the fields relevant to the event type are populated.
type Event struct {
	// Type is the kind of event.
	Type Type
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// RuleID is the ID of the related rule, if applicable.
	RuleID string
	// FailureID is the ID of the related failure record, if applicable.
	FailureID string
	// BreakerKey is the circuit breaker key, for breaker events.
	BreakerKey string
	// Attempt is the attempt number, for retry events.
	Attempt int
	// Delay is the wait before the next attempt, for retry events.
	Delay time.Duration
	// FailureCount is the breaker failure count, for breaker events.
	FailureCount int
	// Level is the selected escalation threshold, for escalation events.
	Level int
	// ExistingFailures is the unresolved failure count that drove the
	// escalation, for escalation events.
	ExistingFailures int
	// Strategy names the recovery or fallback strategy being applied.
	Strategy string
	// Report is the completed report, for validationCompleted events.
	Report *models.Report
	// Result is the produced result, for ruleCompleted events.
	Result *models.Result
	// Record is the failure record, for failure lifecycle events.
	Record *models.FailureRecord
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
