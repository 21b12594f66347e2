package failure

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edekker/vigil/pkg/models"
)

func TestBackoffDelay_ExponentialSequence(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:      1000 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          30000 * time.Millisecond,
	}

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}
	for i, wantDelay := range want {
		attempt := i + 1
		if got := backoffDelay(models.StrategyExponentialBackoff, attempt, cfg); got != wantDelay {
			t.Errorf("attempt %d: delay = %v, want %v", attempt, got, wantDelay)
		}
	}
}

func TestBackoffDelay_Linear(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 500 * time.Millisecond}
	for attempt := 1; attempt <= 3; attempt++ {
		want := cfg.InitialDelay * time.Duration(attempt)
		if got := backoffDelay(models.StrategyLinearBackoff, attempt, cfg); got != want {
			t.Errorf("attempt %d: delay = %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffDelay_Immediate(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second}
	if got := backoffDelay(models.StrategyImmediateRetry, 3, cfg); got != 0 {
		t.Errorf("immediate retry delay = %v, want 0", got)
	}
}

func TestRetryDelay_JitterStaysWithinTenPercent(t *testing.T) {
	h, err := NewHandler(Config{
		GlobalStrategy: models.StrategyLinearBackoff,
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 1000 * time.Millisecond,
			Jitter:       true,
		},
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)

	base := 1000 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := h.retryDelay(models.StrategyLinearBackoff, 1)
		if d < base || d > base+base/10 {
			t.Fatalf("jittered delay = %v, want within [%v, %v]", d, base, base+base/10)
		}
	}
}

func retryHandler(t *testing.T, cfg Config) *Handler {
	t.Helper()
	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	h := retryHandler(t, Config{
		GlobalStrategy: models.StrategyImmediateRetry,
		Retry:          RetryConfig{MaxAttempts: 3},
	})

	transient := NewError("NetworkError", models.CategoryIntegration, models.SeverityError, "network down")
	attempts := 0
	op := func(context.Context) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, transient
		}
		return "recovered", nil
	}

	val, err := h.Handle(context.Background(), transient, &models.TaskContext{TaskID: "t1"}, op)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if val != "recovered" {
		t.Errorf("value = %v, want %q", val, "recovered")
	}
	if attempts != 3 {
		t.Errorf("operation invoked %d times, want 3", attempts)
	}

	records := h.Records()
	if len(records) != 1 {
		t.Fatalf("Records() = %d entries, want 1", len(records))
	}
	rec := records[0]
	if !rec.Resolved || rec.Attempts != 3 || rec.Strategy != models.StrategyImmediateRetry {
		t.Errorf("record = %+v, want resolved after 3 attempts via immediate_retry", rec)
	}

	stats := h.Stats()
	if stats.TotalRetries != 3 || stats.TotalRecoveries != 1 {
		t.Errorf("stats retries/recoveries = %d/%d, want 3/1", stats.TotalRetries, stats.TotalRecoveries)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	h := retryHandler(t, Config{
		GlobalStrategy: models.StrategyImmediateRetry,
		Retry: RetryConfig{
			MaxAttempts:        5,
			NonRetryableErrors: []string{"NetworkError"},
		},
	})

	fatal := NewError("NetworkError", models.CategoryIntegration, models.SeverityError, "network down")
	attempts := 0
	_, err := h.Handle(context.Background(), fatal, &models.TaskContext{TaskID: "t1"}, func(context.Context) (any, error) {
		attempts++
		return nil, fatal
	})
	if err == nil {
		t.Fatal("Handle should fail for a non-retryable error")
	}
	if attempts != 1 {
		t.Errorf("operation invoked %d times, want 1 (no retries)", attempts)
	}
}

func TestRetry_ConfiguredRetryableListExtendsDefaults(t *testing.T) {
	h := retryHandler(t, Config{
		GlobalStrategy: models.StrategyImmediateRetry,
		Retry: RetryConfig{
			MaxAttempts:     2,
			RetryableErrors: []string{"QuotaError"},
		},
	})

	quota := NewError("QuotaError", models.CategoryBusiness, models.SeverityError, "quota exceeded")
	attempts := 0
	h.Handle(context.Background(), quota, &models.TaskContext{TaskID: "t1"}, func(context.Context) (any, error) {
		attempts++
		return nil, quota
	})
	if attempts != 2 {
		t.Errorf("operation invoked %d times, want 2 (configured retryable)", attempts)
	}
}

func TestRetry_ExhaustionReturnsLastError(t *testing.T) {
	h := retryHandler(t, Config{
		GlobalStrategy: models.StrategyImmediateRetry,
		Retry:          RetryConfig{MaxAttempts: 2},
	})

	transient := NewError("TimeoutError", models.CategoryFunctional, models.SeverityError, "still timing out")
	_, err := h.Handle(context.Background(), transient, &models.TaskContext{TaskID: "t1"}, failingOp(transient))
	if err == nil {
		t.Fatal("Handle should fail on exhaustion")
	}
	if !strings.Contains(err.Error(), "exhausted") || !errors.Is(err, transient) {
		t.Errorf("exhaustion error = %v, want the last error wrapped", err)
	}

	if rec := h.Records()[0]; rec.Resolved || rec.Attempts != 2 {
		t.Errorf("record = %+v, want unresolved with 2 attempts", rec)
	}
}

func TestIsRetryable_Precedence(t *testing.T) {
	h := retryHandler(t, Config{
		GlobalStrategy: models.StrategyImmediateRetry,
		Retry: RetryConfig{
			MaxAttempts:        1,
			RetryableErrors:    []string{"FlakyError"},
			NonRetryableErrors: []string{"FlakyError", "TimeoutError"},
		},
	})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"non-retryable list wins over retryable list", NewError("FlakyError", "", "", "x"), false},
		{"non-retryable list wins over defaults", NewError("TimeoutError", "", "", "x"), false},
		{"default set retries network errors", NewError("NetworkError", "", "", "x"), true},
		{"default set retries connection errors", errors.New("connection refused"), true},
		{"deadline exceeded maps to timeout", context.DeadlineExceeded, false}, // listed non-retryable above
		{"unknown errors are not retried", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorName_Recognition(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"classified name wins", NewError("CustomError", "", "", "msg"), "CustomError"},
		{"deadline exceeded", context.DeadlineExceeded, "TimeoutError"},
		{"timeout in message", errors.New("operation timed out"), "TimeoutError"},
		{"connection in message", errors.New("connection reset by peer"), "ConnectionError"},
		{"network in message", errors.New("network is unreachable"), "NetworkError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorName(tt.err); got != tt.want {
				t.Errorf("errorName(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
