package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edekker/vigil/internal/graph"
	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"

	"github.com/google/uuid"
)

// ruleOutcome is what one rule execution contributes back to the cycle.
type ruleOutcome struct {
	ruleID  string
	results []models.Result
	failed  bool
}

// runCycle executes the given rules in dependency order. Independent rules
// run concurrently in batches capped at MaxConcurrentValidations; a batch
// finishes, success or failure, before readiness is re-evaluated.
//
// A stall (no ready rules while some are still pending) means the rule set
// has a circular or missing dependency. The cycle logs it and runs every
// remaining rule anyway so it terminates instead of deadlocking.
func (e *Engine) runCycle(ctx context.Context, rules []models.Rule, target *models.TaskContext) ([]models.Result, error) {
	g := graph.New()
	g.Build(rules)

	ruleByID := make(map[string]models.Rule, len(rules))
	for _, rule := range rules {
		ruleByID[rule.ID] = rule
	}

	var results []models.Result
	stallLogged := false

	for g.Pending() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cycle aborted: %w", err)
		}

		batch := g.Ready()
		if len(batch) == 0 {
			// Circular or missing dependencies: nothing can become ready.
			if !stallLogged {
				stallLogged = true
				e.log.Warn("dependency stall, running remaining rules unordered",
					logging.String("task_id", target.TaskID),
					logging.Bool("cycle", g.HasCycle()),
					logging.Strings("missing_dependencies", g.Missing()),
					logging.Strings("remaining", g.Remaining()))
			}
			batch = g.Remaining()
		}
		if len(batch) > e.cfg.MaxConcurrentValidations {
			batch = batch[:e.cfg.MaxConcurrentValidations]
		}

		for _, out := range e.runBatch(ctx, batch, ruleByID, g, target) {
			results = append(results, out.results...)
			g.MarkCompleted(out.ruleID)
			if out.failed {
				g.MarkFailed(out.ruleID)
			}
		}
	}

	return results, nil
}

// runBatch runs one batch of rules concurrently and collects the outcomes.
func (e *Engine) runBatch(ctx context.Context, batch []string, ruleByID map[string]models.Rule, g *graph.DependencyGraph, target *models.TaskContext) []ruleOutcome {
	outcomes := make(chan ruleOutcome, len(batch))

	for _, id := range batch {
		rule := ruleByID[id]

		if e.cfg.StrictDependencies {
			if failedDeps := g.FailedDependencies(id); len(failedDeps) > 0 {
				outcomes <- e.skipForFailedDependencies(rule, target, failedDeps)
				continue
			}
		}

		go func(rule models.Rule) {
			results, failed := e.executeRule(ctx, rule, target)
			outcomes <- ruleOutcome{ruleID: rule.ID, results: results, failed: failed}
		}(rule)
	}

	collected := make([]ruleOutcome, 0, len(batch))
	for range batch {
		collected = append(collected, <-outcomes)
	}
	return collected
}

// skipForFailedDependencies synthesizes the skipped outcome used under
// strict dependency semantics. The rule counts as failed so transitive
// dependents are skipped too.
func (e *Engine) skipForFailedDependencies(rule models.Rule, target *models.TaskContext, failedDeps []string) ruleOutcome {
	e.log.Info("skipping rule, dependencies failed",
		logging.String("rule_id", rule.ID),
		logging.Strings("failed_dependencies", failedDeps))

	result := models.Result{
		ID:        uuid.New().String(),
		RuleID:    rule.ID,
		TaskID:    target.TaskID,
		Status:    models.StatusSkipped,
		Severity:  rule.Severity,
		Category:  rule.Category,
		Message:   fmt.Sprintf("Rule skipped: dependencies failed: %s", strings.Join(failedDeps, ", ")),
		Timestamp: time.Now(),
	}
	e.emit(events.Event{
		Type:   events.TypeRuleCompleted,
		RuleID: rule.ID,
		TaskID: target.TaskID,
		Result: &result,
	})
	return ruleOutcome{ruleID: rule.ID, results: []models.Result{result}, failed: true}
}
