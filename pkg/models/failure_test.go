package models

import (
	"testing"
	"time"
)

func TestRecoveryStrategy_Valid(t *testing.T) {
	tests := []struct {
		name     string
		strategy RecoveryStrategy
		want     bool
	}{
		{"immediate_retry is valid", StrategyImmediateRetry, true},
		{"linear_backoff is valid", StrategyLinearBackoff, true},
		{"exponential_backoff is valid", StrategyExponentialBackoff, true},
		{"circuit_breaker is valid", StrategyCircuitBreaker, true},
		{"escalate is valid", StrategyEscalate, true},
		{"fallback is valid", StrategyFallback, true},
		{"ignore is valid", StrategyIgnore, true},
		{"empty string is invalid", RecoveryStrategy(""), false},
		{"unknown strategy is invalid", RecoveryStrategy("give_up"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.strategy.Valid(); got != tt.want {
				t.Errorf("RecoveryStrategy(%q).Valid() = %v, want %v", tt.strategy, got, tt.want)
			}
		})
	}
}

func TestFailureRecord_DefaultValues(t *testing.T) {
	rec := FailureRecord{}

	if rec.ID != "" {
		t.Errorf("FailureRecord.ID default should be empty string, got %q", rec.ID)
	}
	if rec.Resolved {
		t.Error("FailureRecord.Resolved default should be false")
	}
	if rec.Attempts != 0 {
		t.Errorf("FailureRecord.Attempts default should be 0, got %d", rec.Attempts)
	}
	if rec.RecoveryTime != 0 {
		t.Errorf("FailureRecord.RecoveryTime default should be 0, got %v", rec.RecoveryTime)
	}
	if !rec.Timestamp.IsZero() {
		t.Errorf("FailureRecord.Timestamp default should be zero time, got %v", rec.Timestamp)
	}
}

func TestFailureRecord_Fields(t *testing.T) {
	now := time.Now()
	rec := FailureRecord{
		ID:           "failure-1a2b3c4d",
		TaskID:       "task-42",
		ErrorName:    "TimeoutError",
		ErrorMessage: "rule timed out after 30s",
		Category:     CategoryPerformance,
		Severity:     SeverityError,
		Timestamp:    now,
		Resolved:     true,
		Strategy:     StrategyExponentialBackoff,
		Attempts:     3,
		RecoveryTime: 7 * time.Second,
	}

	if rec.TaskID != "task-42" {
		t.Errorf("FailureRecord.TaskID = %q, want %q", rec.TaskID, "task-42")
	}
	if rec.ErrorName != "TimeoutError" {
		t.Errorf("FailureRecord.ErrorName = %q, want %q", rec.ErrorName, "TimeoutError")
	}
	if rec.Category != CategoryPerformance {
		t.Errorf("FailureRecord.Category = %q, want %q", rec.Category, CategoryPerformance)
	}
	if rec.Severity != SeverityError {
		t.Errorf("FailureRecord.Severity = %q, want %q", rec.Severity, SeverityError)
	}
	if !rec.Resolved {
		t.Error("FailureRecord.Resolved = false, want true")
	}
	if rec.Strategy != StrategyExponentialBackoff {
		t.Errorf("FailureRecord.Strategy = %q, want %q", rec.Strategy, StrategyExponentialBackoff)
	}
	if rec.Attempts != 3 {
		t.Errorf("FailureRecord.Attempts = %d, want 3", rec.Attempts)
	}
	if rec.RecoveryTime != 7*time.Second {
		t.Errorf("FailureRecord.RecoveryTime = %v, want %v", rec.RecoveryTime, 7*time.Second)
	}
}
