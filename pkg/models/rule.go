package models

import (
	"context"
	"time"
)

// Category classifies rules, results, and failures along a functional axis.
type Category string

const (
	// CategorySyntax covers parse, format, and style checks.
	CategorySyntax Category = "syntax"
	// CategoryLogic covers static correctness and code-smell checks.
	CategoryLogic Category = "logic"
	// CategorySecurity covers vulnerability and policy checks.
	CategorySecurity Category = "security"
	// CategoryPerformance covers latency, size, and resource checks.
	CategoryPerformance Category = "performance"
	// CategoryIntegration covers cross-component and environment checks.
	CategoryIntegration Category = "integration"
	// CategoryFunctional covers behavioral correctness checks.
	CategoryFunctional Category = "functional"
	// CategoryBusiness covers domain-requirement checks.
	CategoryBusiness Category = "business"
)

// Valid returns true if the category is a known value.
func (c Category) Valid() bool {
	switch c {
	case CategorySyntax, CategoryLogic, CategorySecurity, CategoryPerformance,
		CategoryIntegration, CategoryFunctional, CategoryBusiness:
		return true
	default:
		return false
	}
}

// Categories returns all known categories in a stable order.
func Categories() []Category {
	return []Category{
		CategorySyntax,
		CategoryLogic,
		CategorySecurity,
		CategoryPerformance,
		CategoryIntegration,
		CategoryFunctional,
		CategoryBusiness,
	}
}

// Severity ranks how serious a result or failure is.
type Severity string

const (
	// SeverityInfo marks informational findings.
	SeverityInfo Severity = "info"
	// SeverityWarning marks findings that should be reviewed but do not block.
	SeverityWarning Severity = "warning"
	// SeverityError marks findings that indicate the task is not acceptable.
	SeverityError Severity = "error"
	// SeverityCritical marks findings that require immediate attention.
	SeverityCritical Severity = "critical"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

// RuleExecutor runs a single validation rule against a task.
// Implementations should honor ctx cancellation; the engine cancels ctx
// when the rule's timeout elapses.
type RuleExecutor interface {
	Execute(ctx context.Context, target *TaskContext) ([]Result, error)
}

// RuleExecutorFunc adapts a plain function to the RuleExecutor interface.
type RuleExecutorFunc func(ctx context.Context, target *TaskContext) ([]Result, error)

// Execute calls f.
func (f RuleExecutorFunc) Execute(ctx context.Context, target *TaskContext) ([]Result, error) {
	return f(ctx, target)
}

// Rule describes a single validation check and how to run it.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string `json:"id"`
	// Name is the short human-readable name of the rule.
	Name string `json:"name"`
	// Description explains what the rule checks.
	Description string `json:"description,omitempty"`
	// Category is the functional area this rule belongs to.
	Category Category `json:"category"`
	// Severity is the default severity for results this rule produces.
	Severity Severity `json:"severity"`
	// Enabled gates execution; disabled rules stay registered but never run.
	Enabled bool `json:"enabled"`
	// DependsOn lists rule IDs that must complete before this rule runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// Timeout bounds a single execution attempt. Zero means the engine default.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Retries overrides the engine retry count for this rule. Nil means the
	// engine default; an explicit zero disables retries.
	Retries *int `json:"retries,omitempty"`
	// Metadata carries free-form rule details for adapters and reporting.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Executor performs the actual check.
	Executor RuleExecutor `json:"-"`
}
