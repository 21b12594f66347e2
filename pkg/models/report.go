package models

import "time"

// Tally holds passed/failed/skipped counts for a set of results.
type Tally struct {
	// Total is the number of results counted.
	Total int `json:"total"`
	// Passed is the number of results with passed status.
	Passed int `json:"passed"`
	// Failed is the number of results with failed status.
	Failed int `json:"failed"`
	// Skipped is the number of results with skipped status.
	Skipped int `json:"skipped"`
}

// Count adds one result to the tally.
func (t *Tally) Count(r Result) {
	t.Total++
	switch r.Status {
	case StatusPassed:
		t.Passed++
	case StatusFailed:
		t.Failed++
	case StatusSkipped:
		t.Skipped++
	}
}

// Add accumulates another tally into this one.
func (t *Tally) Add(other Tally) {
	t.Total += other.Total
	t.Passed += other.Passed
	t.Failed += other.Failed
	t.Skipped += other.Skipped
}

// CategorySummary aggregates the results of one category.
type CategorySummary struct {
	// Category is the functional area summarized.
	Category Category `json:"category"`
	Tally
	// Results lists the results counted into this summary.
	Results []Result `json:"results,omitempty"`
}

// Report is the aggregated outcome of one validation cycle.
type Report struct {
	// ID is the unique identifier for this report.
	ID string `json:"id"`
	// TaskID identifies the validated task.
	TaskID string `json:"task_id"`
	// Timestamp is when the validation cycle started.
	Timestamp time.Time `json:"timestamp"`
	// Duration is how long the whole cycle took.
	Duration time.Duration `json:"duration"`
	// Summary holds one entry per category that had a registered rule,
	// even when that category produced no results.
	Summary map[Category]*CategorySummary `json:"summary"`
	Tally
	// Results lists every result produced during the cycle.
	Results []Result `json:"results"`
	// Metadata carries environment details such as the execution mode.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Success returns true if no result in the report failed.
func (r *Report) Success() bool { return r.Failed == 0 }
