package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"

	"github.com/google/uuid"
)

// executeRule runs one rule against one context, retrying failed attempts
// with a linearly growing delay. It never returns an error: an exhausted
// rule is absorbed into a single synthetic failed result so the cycle keeps
// going. The boolean reports whether the rule counts as failed.
func (e *Engine) executeRule(ctx context.Context, rule models.Rule, target *models.TaskContext) ([]models.Result, bool) {
	e.emit(events.Event{Type: events.TypeRuleStarted, RuleID: rule.ID, TaskID: target.TaskID})
	e.log.Debug("rule started",
		logging.String("rule_id", rule.ID),
		logging.String("task_id", target.TaskID))

	timeout := rule.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	retries := e.cfg.Retries
	if rule.Retries != nil {
		retries = *rule.Retries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		started := time.Now()
		results, err := e.runAttempt(ctx, rule, target, timeout)
		if err == nil {
			elapsed := time.Since(started)
			failed := false
			for i := range results {
				e.enrichResult(&results[i], rule, target.TaskID, elapsed)
				if results[i].Failed() {
					failed = true
				}
				e.emit(events.Event{
					Type:   events.TypeRuleCompleted,
					RuleID: rule.ID,
					TaskID: target.TaskID,
					Result: &results[i],
				})
			}
			return results, failed
		}
		lastErr = err

		if attempt < retries {
			// Linear backoff: base delay scaled by the attempt number.
			delay := e.cfg.RetryBaseDelay * time.Duration(attempt+1)
			e.log.Debug("rule attempt failed, retrying",
				logging.String("rule_id", rule.ID),
				logging.Int("attempt", attempt+1),
				logging.Duration("delay", delay),
				logging.Error(err))
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(delay):
				continue
			}
			break
		}
	}

	e.log.Warn("rule execution failed",
		logging.String("rule_id", rule.ID),
		logging.String("task_id", target.TaskID),
		logging.Int("attempts", retries+1),
		logging.Error(lastErr))
	e.emit(events.Event{Type: events.TypeRuleFailed, RuleID: rule.ID, TaskID: target.TaskID, Err: lastErr})

	synthetic := models.Result{
		ID:        uuid.New().String(),
		RuleID:    rule.ID,
		TaskID:    target.TaskID,
		Status:    models.StatusFailed,
		Severity:  models.SeverityError,
		Category:  rule.Category,
		Message:   fmt.Sprintf("Rule execution failed: %v", lastErr),
		Timestamp: time.Now(),
	}
	return []models.Result{synthetic}, true
}

// runAttempt invokes the rule's executor once, racing it against the
// timeout. The attempt context is cancelled when the timeout fires so
// cooperative executors stop; an executor that ignores its context keeps
// consuming resources after the attempt is abandoned.
func (e *Engine) runAttempt(ctx context.Context, rule models.Rule, target *models.TaskContext, timeout time.Duration) ([]models.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type attempt struct {
		results []models.Result
		err     error
	}
	done := make(chan attempt, 1)
	go func() {
		results, err := rule.Executor.Execute(attemptCtx, target)
		done <- attempt{results: results, err: err}
	}()

	select {
	case out := <-done:
		return out.results, out.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("rule %s timed out after %s", rule.ID, timeout)
	}
}

// enrichResult fills defaults for fields the executor left empty, taking
// category and severity from the rule itself.
func (e *Engine) enrichResult(r *models.Result, rule models.Rule, taskID string, elapsed time.Duration) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.RuleID == "" {
		r.RuleID = rule.ID
	}
	if r.TaskID == "" {
		r.TaskID = taskID
	}
	if r.Category == "" {
		r.Category = rule.Category
	}
	if r.Severity == "" {
		r.Severity = rule.Severity
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.Duration == 0 {
		r.Duration = elapsed
	}
}
