package models

import "time"

// TaskContext is the input bundle describing the task under validation.
// It is treated as immutable once handed to a rule executor.
type TaskContext struct {
	// TaskID is the unique identifier of the task being validated.
	TaskID string `json:"task_id"`
	// Files lists source files to validate.
	Files []string `json:"files,omitempty"`
	// Content is an optional inline blob for rules that inspect content
	// directly instead of reading files.
	Content string `json:"content,omitempty"`
	// Metadata carries free-form key/value pairs visible to executors.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Config carries per-call overrides for rules that consult it.
	Config map[string]any `json:"config,omitempty"`
	// PriorResults holds results from earlier validation stages so rules
	// can chain on previous findings.
	PriorResults []Result `json:"prior_results,omitempty"`
	// Timestamp is when this context was assembled.
	Timestamp time.Time `json:"timestamp,omitempty"`
}
