package failure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"

	"github.com/google/uuid"
)

// Operation is the unit of work the handler retries, routes through
// breakers, or substitutes. The returned value is handed back to the
// caller untouched on success.
type Operation func(ctx context.Context) (any, error)

// Handler applies recovery strategies to validation failures and keeps the
// failure records, counters, and circuit breakers that drive them. Every
// Handler instance owns its own state; independent handlers never share
// breakers or records.
type Handler struct {
	cfg         Config
	log         logging.Logger
	emitter     *events.Emitter
	ownsEmitter bool
	notifier    Notifier
	alternative Operation
	conditions  []compiledCondition
	now         func() time.Time

	mu          sync.Mutex
	records     map[string]*models.FailureRecord
	recordOrder []string
	breakers    map[string]*circuitBreaker

	totalFailures   int64
	totalRetries    int64
	totalRecoveries int64
	recoverySum     time.Duration
	byCategory      map[models.Category]int64
	bySeverity      map[models.Severity]int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log logging.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithEmitter attaches an existing emitter instead of the handler's own,
// so engine and handler notifications share one stream. The handler will
// not close an emitter it does not own.
func WithEmitter(em *events.Emitter) Option {
	return func(h *Handler) {
		if em != nil {
			h.emitter = em
			h.ownsEmitter = false
		}
	}
}

// WithNotifier replaces the default log-backed escalation notifier.
func WithNotifier(n Notifier) Option {
	return func(h *Handler) {
		if n != nil {
			h.notifier = n
		}
	}
}

// WithAlternativeOperation supplies the operation invoked by the
// "alternative" fallback strategy.
func WithAlternativeOperation(op Operation) Option {
	return func(h *Handler) {
		h.alternative = op
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler creates a Handler from the given configuration. Zero-valued
// config fields are filled with defaults; invalid configuration is
// rejected.
func NewHandler(cfg Config, opts ...Option) (*Handler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failure handler config: %w", err)
	}

	conditions, err := compileConditions(cfg.Fallback.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failure handler config: %w", err)
	}

	h := &Handler{
		cfg:         cfg,
		log:         logging.NewNop(),
		emitter:     events.NewEmitter(events.DefaultBufferSize),
		ownsEmitter: true,
		conditions:  conditions,
		now:         time.Now,
		records:     make(map[string]*models.FailureRecord),
		breakers:    make(map[string]*circuitBreaker),
		byCategory:  make(map[models.Category]int64),
		bySeverity:  make(map[models.Severity]int64),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.notifier == nil {
		h.notifier = &logNotifier{log: h.log}
	}
	return h, nil
}

// Handle applies the configured recovery policy to a failed operation.
// It records the failure, selects a strategy (severity mapping first, then
// category mapping, then the global default), executes it, and either
// marks the record resolved or attaches the handling error and returns it.
//
// The returned value is whatever the recovery produced: the operation's
// own result after a successful retry, or a synthetic models.Result from a
// fallback substitution.
func (h *Handler) Handle(ctx context.Context, cause error, target *models.TaskContext, op Operation) (any, error) {
	if cause == nil {
		return nil, errors.New("failure handler: nil error")
	}
	if op == nil {
		return nil, errors.New("failure handler: nil operation")
	}

	taskID := ""
	if target != nil {
		taskID = target.TaskID
	}

	cls := classify(cause)
	rec := &models.FailureRecord{
		ID:           newFailureID(),
		TaskID:       taskID,
		ErrorName:    cls.Name,
		ErrorMessage: cause.Error(),
		Category:     cls.Category,
		Severity:     cls.Severity,
		Context:      target,
		Timestamp:    h.now(),
		Metadata:     make(map[string]any),
	}
	h.storeRecord(rec)
	h.emit(events.Event{
		Type:      events.TypeFailureDetected,
		TaskID:    taskID,
		FailureID: rec.ID,
		Record:    h.recordPtr(rec),
	})

	strategy := h.strategyFor(cls)
	h.mu.Lock()
	rec.Strategy = strategy
	h.mu.Unlock()

	h.log.Info("handling validation failure",
		logging.String("failure_id", rec.ID),
		logging.String("task_id", taskID),
		logging.String("error_name", cls.Name),
		logging.String("category", string(cls.Category)),
		logging.String("severity", string(cls.Severity)),
		logging.String("strategy", string(strategy)))

	val, err := h.applyStrategy(ctx, strategy, rec, cause, op)
	if err != nil {
		h.mu.Lock()
		rec.Metadata["handling_error"] = err.Error()
		h.mu.Unlock()
		h.emit(events.Event{
			Type:      events.TypeFailureUnresolved,
			TaskID:    taskID,
			FailureID: rec.ID,
			Record:    h.recordPtr(rec),
			Err:       err,
		})
		h.log.Warn("validation failure unresolved",
			logging.String("failure_id", rec.ID),
			logging.String("strategy", string(strategy)),
			logging.Error(err))
		return nil, err
	}

	h.mu.Lock()
	rec.Resolved = true
	rec.RecoveryTime = h.now().Sub(rec.Timestamp)
	h.totalRecoveries++
	h.recoverySum += rec.RecoveryTime
	h.mu.Unlock()

	h.emit(events.Event{
		Type:      events.TypeFailureResolved,
		TaskID:    taskID,
		FailureID: rec.ID,
		Record:    h.recordPtr(rec),
	})
	h.log.Info("validation failure resolved",
		logging.String("failure_id", rec.ID),
		logging.String("strategy", string(strategy)),
		logging.Duration("recovery_time", rec.RecoveryTime))
	return val, nil
}

// strategyFor selects the strategy: severity mapping, category mapping,
// global default, in that order.
func (h *Handler) strategyFor(cls classification) models.RecoveryStrategy {
	if s, ok := h.cfg.SeverityStrategies[cls.Severity]; ok {
		return s
	}
	if s, ok := h.cfg.CategoryStrategies[cls.Category]; ok {
		return s
	}
	return h.cfg.GlobalStrategy
}

func (h *Handler) applyStrategy(ctx context.Context, strategy models.RecoveryStrategy, rec *models.FailureRecord, cause error, op Operation) (any, error) {
	switch strategy {
	case models.StrategyIgnore:
		return nil, cause
	case models.StrategyImmediateRetry, models.StrategyLinearBackoff, models.StrategyExponentialBackoff:
		return h.retryWithStrategy(ctx, strategy, rec, op)
	case models.StrategyCircuitBreaker:
		return h.executeWithBreaker(ctx, breakerKey(rec.TaskID), op)
	case models.StrategyEscalate:
		return h.escalate(ctx, rec, op)
	case models.StrategyFallback:
		return h.fallback(ctx, rec, cause, op)
	default:
		return nil, fmt.Errorf("unknown recovery strategy %q", strategy)
	}
}

// storeRecord inserts a record, applying the retention policy and updating
// the failure counters.
func (h *Handler) storeRecord(rec *models.FailureRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ttl := h.cfg.Retention.RecordTTL; ttl > 0 {
		cutoff := h.now().Add(-ttl)
		kept := h.recordOrder[:0]
		for _, id := range h.recordOrder {
			old := h.records[id]
			if old != nil && old.Resolved && old.Timestamp.Before(cutoff) {
				delete(h.records, id)
				continue
			}
			kept = append(kept, id)
		}
		h.recordOrder = kept
	}

	h.records[rec.ID] = rec
	h.recordOrder = append(h.recordOrder, rec.ID)

	if max := h.cfg.Retention.MaxRecords; max > 0 {
		for len(h.recordOrder) > max {
			oldest := h.recordOrder[0]
			h.recordOrder = h.recordOrder[1:]
			delete(h.records, oldest)
		}
	}

	h.totalFailures++
	h.byCategory[rec.Category]++
	h.bySeverity[rec.Severity]++
}

// countAttempt bumps the record's attempt counter and the global retry
// counter; it is called once per operation invocation made while handling.
func (h *Handler) countAttempt(rec *models.FailureRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.Attempts++
	h.totalRetries++
}

// recordSnapshot returns a copy of the record safe to hand to collaborators.
func (h *Handler) recordSnapshot(rec *models.FailureRecord) models.FailureRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *rec
}

// recordPtr returns a pointer to a copy, for event payloads.
func (h *Handler) recordPtr(rec *models.FailureRecord) *models.FailureRecord {
	snapshot := h.recordSnapshot(rec)
	return &snapshot
}

// Records returns copies of all stored failure records in insertion order.
func (h *Handler) Records() []models.FailureRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.FailureRecord, 0, len(h.recordOrder))
	for _, id := range h.recordOrder {
		if rec, ok := h.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Record returns a copy of one failure record by id.
func (h *Handler) Record(id string) (models.FailureRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.records[id]
	if !ok {
		return models.FailureRecord{}, false
	}
	return *rec, true
}

// Stats summarizes the handler's activity since construction.
type Stats struct {
	// TotalFailures is the number of failure records created.
	TotalFailures int64
	// TotalRetries is the number of operation invocations made while
	// handling failures.
	TotalRetries int64
	// TotalRecoveries is the number of failures that resolved.
	TotalRecoveries int64
	// AverageRecoveryTime is the mean recovery time across resolved
	// failures.
	AverageRecoveryTime time.Duration
	// ActiveCircuitBreakers is the number of breakers currently tracked.
	ActiveCircuitBreakers int
	// FailuresByCategory breaks total failures down by category.
	FailuresByCategory map[models.Category]int64
	// FailuresBySeverity breaks total failures down by severity.
	FailuresBySeverity map[models.Severity]int64
}

// Stats returns a snapshot of the handler's counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Stats{
		TotalFailures:         h.totalFailures,
		TotalRetries:          h.totalRetries,
		TotalRecoveries:       h.totalRecoveries,
		ActiveCircuitBreakers: len(h.breakers),
		FailuresByCategory:    make(map[models.Category]int64, len(h.byCategory)),
		FailuresBySeverity:    make(map[models.Severity]int64, len(h.bySeverity)),
	}
	if h.totalRecoveries > 0 {
		stats.AverageRecoveryTime = h.recoverySum / time.Duration(h.totalRecoveries)
	}
	for cat, n := range h.byCategory {
		stats.FailuresByCategory[cat] = n
	}
	for sev, n := range h.bySeverity {
		stats.FailuresBySeverity[sev] = n
	}
	return stats
}

// Events returns the handler's notification stream. Subscribers must drain
// it; when nobody reads, events are dropped after a short grace period.
func (h *Handler) Events() <-chan events.Event {
	return h.emitter.Events()
}

// Close releases the handler's notification stream if it owns one.
func (h *Handler) Close() {
	if h.ownsEmitter {
		h.emitter.Close()
	}
}

func (h *Handler) emit(ev events.Event) {
	h.emitter.Emit(ev)
}

func newFailureID() string {
	return "failure-" + uuid.New().String()[:8]
}
