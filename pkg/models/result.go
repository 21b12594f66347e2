package models

import "time"

// Status is the outcome of a single rule execution.
type Status string

const (
	// StatusPending indicates the check has not started yet.
	StatusPending Status = "pending"
	// StatusRunning indicates the check is currently executing.
	StatusRunning Status = "running"
	// StatusPassed indicates the check succeeded.
	StatusPassed Status = "passed"
	// StatusFailed indicates the check found a violation or could not run.
	StatusFailed Status = "failed"
	// StatusSkipped indicates the check was deliberately not performed.
	StatusSkipped Status = "skipped"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Result is a single finding produced by a rule execution.
type Result struct {
	// ID is the unique identifier for this result.
	ID string `json:"id"`
	// RuleID identifies the rule that produced this result.
	RuleID string `json:"rule_id"`
	// TaskID identifies the task the result applies to.
	TaskID string `json:"task_id"`
	// Status is the outcome of the check.
	Status Status `json:"status"`
	// Severity ranks the finding.
	Severity Severity `json:"severity"`
	// Category is the functional area of the finding.
	Category Category `json:"category"`
	// Message is the human-readable description of the finding.
	Message string `json:"message"`
	// Details carries structured data about the finding.
	Details map[string]any `json:"details,omitempty"`
	// File is the path of the file the finding points at, if any.
	File string `json:"file,omitempty"`
	// Line is the 1-based line of the finding, if known.
	Line int `json:"line,omitempty"`
	// Column is the 1-based column of the finding, if known.
	Column int `json:"column,omitempty"`
	// Timestamp is when the result was produced.
	Timestamp time.Time `json:"timestamp"`
	// Duration is how long the rule execution took.
	Duration time.Duration `json:"duration"`
	// Metadata carries free-form result details.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Passed returns true if the result has passed status.
func (r Result) Passed() bool { return r.Status == StatusPassed }

// Failed returns true if the result has failed status.
func (r Result) Failed() bool { return r.Status == StatusFailed }

// Skipped returns true if the result has skipped status.
func (r Result) Skipped() bool { return r.Status == StatusSkipped }
