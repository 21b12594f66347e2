package failure

import (
	"context"
	"errors"
	"testing"

	"github.com/edekker/vigil/pkg/models"
)

func fallbackHandler(t *testing.T, cfg FallbackConfig, opts ...Option) *Handler {
	t.Helper()
	h, err := NewHandler(Config{
		GlobalStrategy: models.StrategyFallback,
		Fallback:       cfg,
	}, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

func TestFallback_SkipOnMatchingCondition(t *testing.T) {
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{Severity: models.SeverityWarning, Category: models.CategoryPerformance}},
		Strategies: []FallbackStrategy{{Type: FallbackSkip}},
	})

	cause := NewError("PerfBudget", models.CategoryPerformance, models.SeverityWarning, "frame budget exceeded")
	val, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: "t1"}, failingOp(cause))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	result, ok := val.(models.Result)
	if !ok {
		t.Fatalf("fallback produced %T, want models.Result", val)
	}
	if result.Status != models.StatusSkipped {
		t.Errorf("result status = %q, want skipped", result.Status)
	}
	if result.TaskID != "t1" {
		t.Errorf("result task = %q, want t1", result.TaskID)
	}
	if rec := h.Records()[0]; !rec.Resolved {
		t.Error("record not marked resolved after a successful fallback")
	}
}

func TestFallback_NoMatchRethrowsOriginalError(t *testing.T) {
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{Severity: models.SeverityWarning, Category: models.CategoryPerformance}},
		Strategies: []FallbackStrategy{{Type: FallbackSkip}},
	})

	// Unclassified errors default to functional/error: neither field matches.
	cause := errors.New("boom")
	_, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: "t1"}, failingOp(cause))
	if !errors.Is(err, cause) {
		t.Errorf("Handle error = %v, want the original error unchanged", err)
	}
}

func TestFallback_PartialConditionMatchIsNoMatch(t *testing.T) {
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{Severity: models.SeverityWarning, Category: models.CategoryPerformance}},
		Strategies: []FallbackStrategy{{Type: FallbackSkip}},
	})

	// Right severity, wrong category.
	cause := NewError("SlowParse", models.CategorySyntax, models.SeverityWarning, "parse is slow")
	_, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: "t1"}, failingOp(cause))
	if !errors.Is(err, cause) {
		t.Errorf("Handle error = %v, want the original error for a half-matching condition", err)
	}
}

func TestFallback_DefaultCarriesConfiguredValue(t *testing.T) {
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{Category: models.CategoryPerformance}},
		Strategies: []FallbackStrategy{{Type: FallbackDefault, Value: 42}},
	})

	cause := NewError("PerfBudget", models.CategoryPerformance, models.SeverityError, "too slow")
	val, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: "t1"}, failingOp(cause))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	result := val.(models.Result)
	if result.Status != models.StatusPassed {
		t.Errorf("default result status = %q, want passed", result.Status)
	}
	if got := result.Details["default_value"]; got != 42 {
		t.Errorf(`Details["default_value"] = %v, want 42`, got)
	}
}

func TestFallback_AlternativeOperation(t *testing.T) {
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{Category: models.CategoryPerformance}},
		Strategies: []FallbackStrategy{{Type: FallbackAlternative}},
	}, WithAlternativeOperation(succeedingOp("plan b")))

	cause := NewError("PerfBudget", models.CategoryPerformance, models.SeverityError, "too slow")
	val, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: "t1"}, failingOp(cause))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if val != "plan b" {
		t.Errorf("value = %v, want the alternative operation's result", val)
	}
}

func TestFallback_FirstNonFailingStrategyWins(t *testing.T) {
	// The alternative strategy fails (none configured); skip is next.
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{Category: models.CategoryPerformance}},
		Strategies: []FallbackStrategy{{Type: FallbackAlternative}, {Type: FallbackSkip}},
	})

	cause := NewError("PerfBudget", models.CategoryPerformance, models.SeverityError, "too slow")
	val, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: "t1"}, failingOp(cause))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result := val.(models.Result); result.Status != models.StatusSkipped {
		t.Errorf("result status = %q, want the skip strategy's skipped", result.Status)
	}
}

func TestFallback_AllStrategiesFailingRethrowsOriginal(t *testing.T) {
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{Category: models.CategoryPerformance}},
		Strategies: []FallbackStrategy{{Type: FallbackAlternative}},
	})

	cause := NewError("PerfBudget", models.CategoryPerformance, models.SeverityError, "too slow")
	_, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: "t1"}, failingOp(cause))
	if !errors.Is(err, cause) {
		t.Errorf("Handle error = %v, want the original error once every strategy failed", err)
	}
}

func TestFallback_MessagePattern(t *testing.T) {
	h := fallbackHandler(t, FallbackConfig{
		Conditions: []FallbackCondition{{MessagePattern: `^deadline`}},
		Strategies: []FallbackStrategy{{Type: FallbackSkip}},
	})

	matching := NewError("DeadlineError", models.CategoryFunctional, models.SeverityError, "deadline blown by 3s")
	if _, err := h.Handle(context.Background(), matching, &models.TaskContext{TaskID: "t1"}, failingOp(matching)); err != nil {
		t.Errorf("Handle with matching message = %v, want fallback to engage", err)
	}

	other := NewError("DeadlineError", models.CategoryFunctional, models.SeverityError, "missed the deadline")
	if _, err := h.Handle(context.Background(), other, &models.TaskContext{TaskID: "t1"}, failingOp(other)); !errors.Is(err, other) {
		t.Errorf("Handle with non-matching message = %v, want the original error", err)
	}
}

func TestNewHandler_RejectsBadMessagePattern(t *testing.T) {
	_, err := NewHandler(Config{
		GlobalStrategy: models.StrategyFallback,
		Fallback: FallbackConfig{
			Conditions: []FallbackCondition{{MessagePattern: `(`}},
		},
	})
	if err == nil {
		t.Error("NewHandler should reject an uncompilable message pattern")
	}
}
