package failure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"
)

// Notifier delivers escalation notices to a named target. Targets come
// from the escalation level's Notify list; what a target means (a channel,
// an email, a webhook) is up to the implementation.
type Notifier interface {
	Notify(ctx context.Context, target string, rec models.FailureRecord) error
}

// logNotifier is the default Notifier; it writes notices to the handler's
// logger.
type logNotifier struct {
	log logging.Logger
}

func (n *logNotifier) Notify(_ context.Context, target string, rec models.FailureRecord) error {
	n.log.Warn("escalation notice",
		logging.String("target", target),
		logging.String("failure_id", rec.ID),
		logging.String("task_id", rec.TaskID),
		logging.String("error", rec.ErrorMessage))
	return nil
}

// escalate counts the task's existing unresolved failures, runs the actions
// of the highest escalation level whose threshold is covered, then retries
// the original operation once. If that retry fails too, it falls through to
// exponential backoff rather than giving up.
func (h *Handler) escalate(ctx context.Context, rec *models.FailureRecord, op Operation) (any, error) {
	cfg := h.cfg.Escalation

	if cfg.AutoEscalation {
		count := h.unresolvedFailures(rec.TaskID, rec.ID)
		if level, ok := selectLevel(cfg.Levels, count); ok {
			h.emit(events.Event{
				Type:             events.TypeEscalationTriggered,
				FailureID:        rec.ID,
				TaskID:           rec.TaskID,
				Level:            level.Threshold,
				ExistingFailures: count,
			})
			h.log.Warn("escalation level reached",
				logging.String("failure_id", rec.ID),
				logging.Int("threshold", level.Threshold),
				logging.Int("unresolved_failures", count))

			if cfg.EscalationDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, fmt.Errorf("escalation aborted: %w", ctx.Err())
				case <-time.After(cfg.EscalationDelay):
				}
			}
			h.runEscalationActions(ctx, level, rec)
		} else {
			h.log.Debug("no escalation level reached",
				logging.String("failure_id", rec.ID),
				logging.Int("unresolved_failures", count))
		}
	}

	// One direct retry before resorting to backoff.
	val, err := op(ctx)
	h.countAttempt(rec)
	if err == nil {
		return val, nil
	}
	h.log.Warn("direct retry after escalation failed",
		logging.String("failure_id", rec.ID),
		logging.Error(err))

	return h.retryWithStrategy(ctx, models.StrategyExponentialBackoff, rec, op)
}

// selectLevel scans levels from highest threshold to lowest and returns the
// first whose threshold is less than or equal to count.
func selectLevel(levels []EscalationLevel, count int) (EscalationLevel, bool) {
	sorted := make([]EscalationLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })

	for _, level := range sorted {
		if count >= level.Threshold {
			return level, true
		}
	}
	return EscalationLevel{}, false
}

// runEscalationActions executes a level's actions best-effort: each
// action's own failure is logged and does not abort the others.
func (h *Handler) runEscalationActions(ctx context.Context, level EscalationLevel, rec *models.FailureRecord) {
	actionCtx := ctx
	if level.Timeout > 0 {
		var cancel context.CancelFunc
		actionCtx, cancel = context.WithTimeout(ctx, level.Timeout)
		defer cancel()
	}

	for _, action := range level.Actions {
		if err := h.runEscalationAction(actionCtx, action, level, rec); err != nil {
			h.log.Error("escalation action failed",
				logging.String("action", action),
				logging.String("failure_id", rec.ID),
				logging.Error(err))
		}
	}
}

func (h *Handler) runEscalationAction(ctx context.Context, action string, level EscalationLevel, rec *models.FailureRecord) error {
	switch action {
	case "log":
		h.log.Warn("validation failures escalated",
			logging.String("failure_id", rec.ID),
			logging.String("task_id", rec.TaskID),
			logging.Int("threshold", level.Threshold),
			logging.String("error", rec.ErrorMessage))
		return nil
	case "notify":
		snapshot := h.recordSnapshot(rec)
		var errs []error
		for _, target := range level.Notify {
			if err := h.notifier.Notify(ctx, target, snapshot); err != nil {
				errs = append(errs, fmt.Errorf("notify %s: %w", target, err))
			}
		}
		return errors.Join(errs...)
	case "fallback":
		// Marks intent only; fallback executes when selected as a strategy.
		h.log.Info("fallback requested by escalation policy",
			logging.String("failure_id", rec.ID))
		return nil
	default:
		return fmt.Errorf("unknown escalation action %q", action)
	}
}

// unresolvedFailures counts unresolved records for a task, excluding the
// record currently being handled.
func (h *Handler) unresolvedFailures(taskID, excludeID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, rec := range h.records {
		if rec.TaskID == taskID && !rec.Resolved && rec.ID != excludeID {
			count++
		}
	}
	return count
}
