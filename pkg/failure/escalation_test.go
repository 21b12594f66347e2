package failure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/models"
)

func escalationConfig(levels ...EscalationLevel) Config {
	return Config{
		// Unmapped failures are ignored so the test can seed unresolved
		// records; critical failures escalate.
		GlobalStrategy: models.StrategyIgnore,
		SeverityStrategies: map[models.Severity]models.RecoveryStrategy{
			models.SeverityCritical: models.StrategyEscalate,
		},
		Escalation: EscalationConfig{
			AutoEscalation: true,
			Levels:         levels,
		},
	}
}

// seedUnresolved records n unresolved failures for the task via the ignore
// strategy, which rethrows and leaves the record open.
func seedUnresolved(t *testing.T, h *Handler, taskID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		cause := errors.New("seeded failure")
		if _, err := h.Handle(context.Background(), cause, &models.TaskContext{TaskID: taskID}, failingOp(cause)); err == nil {
			t.Fatal("seeding Handle should fail under the ignore strategy")
		}
	}
}

func drainHandlerEvents(h *Handler) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-h.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

// With levels at thresholds 3 and 5 and four pre-existing unresolved
// failures, the threshold-3 level is selected, not threshold-5.
func TestEscalate_SelectsHighestCoveredLevel(t *testing.T) {
	h, err := NewHandler(escalationConfig(
		EscalationLevel{Threshold: 3, Actions: []string{"log"}},
		EscalationLevel{Threshold: 5, Actions: []string{"log"}},
	))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)

	seedUnresolved(t, h, "t1", 4)

	critical := NewError("MeltdownError", models.CategoryFunctional, models.SeverityCritical, "meltdown")
	val, err := h.Handle(context.Background(), critical, &models.TaskContext{TaskID: "t1"}, succeedingOp("direct retry worked"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if val != "direct retry worked" {
		t.Errorf("value = %v, want the direct retry's result", val)
	}

	var triggered *events.Event
	for _, ev := range drainHandlerEvents(h) {
		if ev.Type == events.TypeEscalationTriggered {
			evCopy := ev
			triggered = &evCopy
		}
	}
	if triggered == nil {
		t.Fatal("no escalationTriggered event emitted")
	}
	if triggered.Level != 3 {
		t.Errorf("selected level threshold = %d, want 3", triggered.Level)
	}
	if triggered.ExistingFailures != 4 {
		t.Errorf("existing failures = %d, want 4", triggered.ExistingFailures)
	}
}

func TestEscalate_NoLevelBelowThreshold(t *testing.T) {
	h, err := NewHandler(escalationConfig(
		EscalationLevel{Threshold: 3, Actions: []string{"log"}},
	))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)

	// No seeded failures: count 0 is below every threshold.
	critical := NewError("MeltdownError", models.CategoryFunctional, models.SeverityCritical, "meltdown")
	if _, err := h.Handle(context.Background(), critical, &models.TaskContext{TaskID: "t1"}, succeedingOp("ok")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	for _, ev := range drainHandlerEvents(h) {
		if ev.Type == events.TypeEscalationTriggered {
			t.Error("escalationTriggered emitted below every threshold")
		}
	}
}

func TestSelectLevel(t *testing.T) {
	levels := []EscalationLevel{
		{Threshold: 3},
		{Threshold: 5},
	}

	tests := []struct {
		count     int
		wantLevel int
		wantFound bool
	}{
		{2, 0, false},
		{3, 3, true},
		{4, 3, true},
		{5, 5, true},
		{9, 5, true},
	}
	for _, tt := range tests {
		level, found := selectLevel(levels, tt.count)
		if found != tt.wantFound || (found && level.Threshold != tt.wantLevel) {
			t.Errorf("selectLevel(count=%d) = (%d, %v), want (%d, %v)",
				tt.count, level.Threshold, found, tt.wantLevel, tt.wantFound)
		}
	}
}

// recordingNotifier captures notifications and optionally fails.
type recordingNotifier struct {
	mu      sync.Mutex
	targets []string
	fail    bool
}

func (n *recordingNotifier) Notify(_ context.Context, target string, _ models.FailureRecord) error {
	n.mu.Lock()
	n.targets = append(n.targets, target)
	n.mu.Unlock()
	if n.fail {
		return errors.New("notification channel down")
	}
	return nil
}

func TestEscalate_ActionsAreBestEffort(t *testing.T) {
	notifier := &recordingNotifier{fail: true}
	h, err := NewHandler(escalationConfig(
		EscalationLevel{Threshold: 1, Actions: []string{"notify", "log", "fallback"}, Notify: []string{"oncall", "lead"}},
	), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)

	seedUnresolved(t, h, "t1", 1)

	critical := NewError("MeltdownError", models.CategoryFunctional, models.SeverityCritical, "meltdown")
	if _, err := h.Handle(context.Background(), critical, &models.TaskContext{TaskID: "t1"}, succeedingOp("ok")); err != nil {
		t.Fatalf("Handle: %v; failing actions must not abort escalation", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.targets) != 2 {
		t.Errorf("notifier called for %v, want both targets despite failures", notifier.targets)
	}
}

func TestEscalate_FallsBackToExponentialBackoff(t *testing.T) {
	cfg := escalationConfig()
	cfg.Retry = RetryConfig{MaxAttempts: 2, InitialDelay: 1}
	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)

	// The direct retry fails, then exponential backoff recovers on its
	// second attempt.
	transient := NewError("TimeoutError", models.CategoryFunctional, models.SeverityCritical, "still failing")
	attempts := 0
	op := func(context.Context) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, transient
		}
		return "backoff recovered", nil
	}

	val, err := h.Handle(context.Background(), transient, &models.TaskContext{TaskID: "t1"}, op)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if val != "backoff recovered" {
		t.Errorf("value = %v, want recovery via the backoff fallback", val)
	}
	if attempts != 3 {
		t.Errorf("operation invoked %d times, want 3 (direct retry + 2 backoff)", attempts)
	}
}
