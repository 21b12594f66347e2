package models

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCategory_Valid(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		want     bool
	}{
		{"syntax is valid", CategorySyntax, true},
		{"logic is valid", CategoryLogic, true},
		{"security is valid", CategorySecurity, true},
		{"performance is valid", CategoryPerformance, true},
		{"integration is valid", CategoryIntegration, true},
		{"functional is valid", CategoryFunctional, true},
		{"business is valid", CategoryBusiness, true},
		{"empty string is invalid", Category(""), false},
		{"unknown category is invalid", Category("cosmetics"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.category.Valid(); got != tt.want {
				t.Errorf("Category(%q).Valid() = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestCategories_CoversAllValidValues(t *testing.T) {
	all := Categories()
	if len(all) != 7 {
		t.Fatalf("Categories() returned %d entries, want 7", len(all))
	}
	seen := make(map[Category]bool)
	for _, c := range all {
		if !c.Valid() {
			t.Errorf("Categories() contains invalid category %q", c)
		}
		if seen[c] {
			t.Errorf("Categories() contains duplicate category %q", c)
		}
		seen[c] = true
	}
}

func TestSeverity_Valid(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		want     bool
	}{
		{"info is valid", SeverityInfo, true},
		{"warning is valid", SeverityWarning, true},
		{"error is valid", SeverityError, true},
		{"critical is valid", SeverityCritical, true},
		{"empty string is invalid", Severity(""), false},
		{"unknown severity is invalid", Severity("fatal"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.severity.Valid(); got != tt.want {
				t.Errorf("Severity(%q).Valid() = %v, want %v", tt.severity, got, tt.want)
			}
		})
	}
}

func TestRuleExecutorFunc_Execute(t *testing.T) {
	wantErr := errors.New("boom")
	var gotTask string

	exec := RuleExecutorFunc(func(_ context.Context, target *TaskContext) ([]Result, error) {
		gotTask = target.TaskID
		return []Result{{RuleID: "r1", Status: StatusPassed}}, wantErr
	})

	results, err := exec.Execute(context.Background(), &TaskContext{TaskID: "task-9"})
	if gotTask != "task-9" {
		t.Errorf("executor saw task %q, want %q", gotTask, "task-9")
	}
	if len(results) != 1 || results[0].RuleID != "r1" {
		t.Errorf("Execute results = %+v, want one result for r1", results)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Execute error = %v, want %v", err, wantErr)
	}
}

func TestRule_DefaultValues(t *testing.T) {
	rule := Rule{}

	if rule.ID != "" {
		t.Errorf("Rule.ID default should be empty string, got %q", rule.ID)
	}
	if rule.Enabled {
		t.Error("Rule.Enabled default should be false")
	}
	if rule.DependsOn != nil {
		t.Errorf("Rule.DependsOn default should be nil, got %v", rule.DependsOn)
	}
	if rule.Timeout != 0 {
		t.Errorf("Rule.Timeout default should be 0, got %v", rule.Timeout)
	}
	if rule.Retries != nil {
		t.Errorf("Rule.Retries default should be nil, got %v", rule.Retries)
	}
	if rule.Executor != nil {
		t.Error("Rule.Executor default should be nil")
	}
}

func TestRule_Fields(t *testing.T) {
	retries := 2
	rule := Rule{
		ID:          "rule-lint",
		Name:        "Lint",
		Description: "Runs the project linter",
		Category:    CategorySyntax,
		Severity:    SeverityWarning,
		Enabled:     true,
		DependsOn:   []string{"rule-compile"},
		Timeout:     30 * time.Second,
		Retries:     &retries,
	}

	if rule.ID != "rule-lint" {
		t.Errorf("Rule.ID = %q, want %q", rule.ID, "rule-lint")
	}
	if rule.Category != CategorySyntax {
		t.Errorf("Rule.Category = %q, want %q", rule.Category, CategorySyntax)
	}
	if rule.Severity != SeverityWarning {
		t.Errorf("Rule.Severity = %q, want %q", rule.Severity, SeverityWarning)
	}
	if !rule.Enabled {
		t.Error("Rule.Enabled = false, want true")
	}
	if len(rule.DependsOn) != 1 || rule.DependsOn[0] != "rule-compile" {
		t.Errorf("Rule.DependsOn = %v, want [rule-compile]", rule.DependsOn)
	}
	if rule.Timeout != 30*time.Second {
		t.Errorf("Rule.Timeout = %v, want %v", rule.Timeout, 30*time.Second)
	}
	if rule.Retries == nil || *rule.Retries != 2 {
		t.Errorf("Rule.Retries = %v, want 2", rule.Retries)
	}
}
