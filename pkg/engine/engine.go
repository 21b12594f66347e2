// Package engine runs registered validation rules against a task in
// dependency order and folds their results into a report. It owns the rule
// registry, the per-task in-flight bookkeeping, and the notification
// stream; the actual checks are supplied by callers through the
// models.RuleExecutor contract.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/failure"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"
)

// Engine is the validation orchestrator. Every Engine instance owns its own
// registry and in-flight state; independent engines never share rules.
type Engine struct {
	cfg         Config
	log         logging.Logger
	emitter     *events.Emitter
	ownsEmitter bool
	failures    *failure.Handler

	mu        sync.Mutex
	rules     map[string]*models.Rule
	ruleOrder []string
	inflight  map[string]*inflightValidation
}

// inflightValidation is the shared outcome of one validation cycle. Every
// concurrent caller for the same task waits on done and reads the same
// report pointer.
type inflightValidation struct {
	done   chan struct{}
	report *models.Report
	err    error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log logging.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithEmitter attaches an existing emitter instead of the engine's own, so
// engine and failure-handler notifications share one stream. The engine
// will not close an emitter it does not own.
func WithEmitter(em *events.Emitter) Option {
	return func(e *Engine) {
		if em != nil {
			e.emitter = em
			e.ownsEmitter = false
		}
	}
}

// WithFailureHandler routes cycle-level errors through the failure policy
// engine: when a cycle aborts, the handler gets one chance to recover it
// (typically by re-running the cycle) before the error reaches the caller.
// Rule-level failures never reach the handler; the executor absorbs them.
func WithFailureHandler(h *failure.Handler) Option {
	return func(e *Engine) {
		e.failures = h
	}
}

// New creates an Engine from the given configuration. Zero-valued config
// fields are filled with defaults; invalid configuration is rejected.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	e := &Engine{
		cfg:         cfg,
		log:         logging.NewNop(),
		emitter:     events.NewEmitter(events.DefaultBufferSize),
		ownsEmitter: true,
		rules:       make(map[string]*models.Rule),
		inflight:    make(map[string]*inflightValidation),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RegisterRule inserts a rule, overwriting any rule with the same id.
// Overwriting is allowed and logged as a warning, not an error.
func (e *Engine) RegisterRule(rule *models.Rule) error {
	if rule == nil {
		return errors.New("register rule: nil rule")
	}
	if rule.ID == "" {
		return errors.New("register rule: empty id")
	}
	if rule.Executor == nil {
		return fmt.Errorf("register rule %s: nil executor", rule.ID)
	}
	if !rule.Category.Valid() {
		return fmt.Errorf("register rule %s: invalid category %q", rule.ID, rule.Category)
	}
	if !rule.Severity.Valid() {
		return fmt.Errorf("register rule %s: invalid severity %q", rule.ID, rule.Severity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[rule.ID]; exists {
		e.log.Warn("overwriting registered rule",
			logging.String("rule_id", rule.ID))
	} else {
		e.ruleOrder = append(e.ruleOrder, rule.ID)
	}
	e.rules[rule.ID] = rule
	return nil
}

// UnregisterRule removes a rule by id and reports whether one was removed.
func (e *Engine) UnregisterRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[id]; !exists {
		return false
	}
	delete(e.rules, id)
	for i, rid := range e.ruleOrder {
		if rid == id {
			e.ruleOrder = append(e.ruleOrder[:i], e.ruleOrder[i+1:]...)
			break
		}
	}
	return true
}

// Rules returns copies of all registered rules in registration order.
func (e *Engine) Rules() []models.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Rule, 0, len(e.ruleOrder))
	for _, id := range e.ruleOrder {
		if rule, ok := e.rules[id]; ok {
			out = append(out, *rule)
		}
	}
	return out
}

// RulesByCategory returns copies of the registered rules in one category.
func (e *Engine) RulesByCategory(cat models.Category) []models.Rule {
	var out []models.Rule
	for _, rule := range e.Rules() {
		if rule.Category == cat {
			out = append(out, rule)
		}
	}
	return out
}

// ApplicableRules returns the rules that would run for the given context:
// enabled rules whose category is in the configured allow-list.
//
// Context-specific filtering (by files, metadata, prior results) is a
// deliberate extension point; override candidates by disabling rules or
// narrowing EnabledCategories for now.
func (e *Engine) ApplicableRules(_ *models.TaskContext) []models.Rule {
	enabled := make(map[models.Category]bool, len(e.cfg.EnabledCategories))
	for _, cat := range e.cfg.EnabledCategories {
		enabled[cat] = true
	}

	var out []models.Rule
	for _, rule := range e.Rules() {
		if rule.Enabled && enabled[rule.Category] {
			out = append(out, rule)
		}
	}
	return out
}

// ValidateTask runs one validation cycle for the task described by target.
//
// If a cycle is already in flight for the same task id, the call does no
// new work and resolves to the in-flight cycle's report. Otherwise the
// engine schedules the applicable rules in dependency batches, executes
// them, and aggregates the results; the in-flight marker is cleared on
// every exit path.
func (e *Engine) ValidateTask(ctx context.Context, target *models.TaskContext) (*models.Report, error) {
	if target == nil || target.TaskID == "" {
		return nil, errors.New("validate task: missing task id")
	}
	taskID := target.TaskID

	e.mu.Lock()
	if inf, running := e.inflight[taskID]; running {
		e.mu.Unlock()
		select {
		case <-inf.done:
			return inf.report, inf.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	inf := &inflightValidation{done: make(chan struct{})}
	e.inflight[taskID] = inf
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		// CancelValidation may have replaced the marker with a newer cycle.
		if e.inflight[taskID] == inf {
			delete(e.inflight, taskID)
		}
		e.mu.Unlock()
		close(inf.done)
	}()

	inf.report, inf.err = e.runValidation(ctx, target)
	return inf.report, inf.err
}

func (e *Engine) runValidation(ctx context.Context, target *models.TaskContext) (*models.Report, error) {
	taskID := target.TaskID
	started := time.Now()

	e.emit(events.Event{Type: events.TypeValidationStarted, TaskID: taskID})
	e.log.Info("validation started", logging.String("task_id", taskID))

	rules := e.ApplicableRules(target)
	results, err := e.runCycle(ctx, rules, target)
	if err != nil && e.failures != nil {
		results, err = e.recoverCycle(ctx, err, target, rules)
	}
	if err != nil {
		e.emit(events.Event{Type: events.TypeValidationFailed, TaskID: taskID, Err: err})
		e.log.Error("validation failed",
			logging.String("task_id", taskID),
			logging.Error(err))
		return nil, fmt.Errorf("validate task %s: %w", taskID, err)
	}

	report := e.buildReport(taskID, rules, results, started, time.Since(started))
	e.emit(events.Event{Type: events.TypeValidationCompleted, TaskID: taskID, Report: report})
	e.log.Info("validation completed",
		logging.String("task_id", taskID),
		logging.Int("total_rules", report.Total),
		logging.Int("failed_rules", report.Failed),
		logging.Duration("duration", report.Duration))

	if e.cfg.FailOnError && report.Failed > 0 {
		return report, fmt.Errorf("validate task %s: %d of %d rules failed", taskID, report.Failed, report.Total)
	}
	return report, nil
}

// recoverCycle gives the failure policy engine one chance to recover an
// aborted cycle by re-running it under the configured strategy.
func (e *Engine) recoverCycle(ctx context.Context, cause error, target *models.TaskContext, rules []models.Rule) ([]models.Result, error) {
	val, err := e.failures.Handle(ctx, cause, target, func(ctx context.Context) (any, error) {
		return e.runCycle(ctx, rules, target)
	})
	if err != nil {
		return nil, err
	}
	results, ok := val.([]models.Result)
	if !ok {
		return nil, fmt.Errorf("cycle recovery produced %T, want []models.Result", val)
	}
	return results, nil
}

// IsValidationRunning reports whether a cycle is in flight for the task.
func (e *Engine) IsValidationRunning(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, running := e.inflight[taskID]
	return running
}

// CancelValidation removes the in-flight marker for a task and reports
// whether one was present. This is bookkeeping only: rules already
// executing keep running, and the abandoned cycle still resolves for the
// callers waiting on it. Interrupt executions by cancelling the context
// passed to ValidateTask instead.
func (e *Engine) CancelValidation(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, running := e.inflight[taskID]; !running {
		return false
	}
	delete(e.inflight, taskID)
	e.log.Info("validation cancelled", logging.String("task_id", taskID))
	return true
}

// Stats summarizes the engine's registry and in-flight state.
type Stats struct {
	// RegisteredRules is the number of rules in the registry.
	RegisteredRules int
	// ActiveValidations is the number of cycles currently in flight.
	ActiveValidations int
	// EnabledCategories is the configured category allow-list.
	EnabledCategories []models.Category
}

// Stats returns a snapshot of the engine's state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	cats := make([]models.Category, len(e.cfg.EnabledCategories))
	copy(cats, e.cfg.EnabledCategories)
	return Stats{
		RegisteredRules:   len(e.rules),
		ActiveValidations: len(e.inflight),
		EnabledCategories: cats,
	}
}

// Events returns the engine's notification stream. Subscribers must drain
// it; when nobody reads, events are dropped after a short grace period.
func (e *Engine) Events() <-chan events.Event {
	return e.emitter.Events()
}

// Close releases the engine's notification stream if it owns one.
func (e *Engine) Close() {
	if e.ownsEmitter {
		e.emitter.Close()
	}
}

func (e *Engine) emit(ev events.Event) {
	e.emitter.Emit(ev)
}
