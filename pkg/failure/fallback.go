package failure

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"

	"github.com/google/uuid"
)

// compiledCondition is a FallbackCondition with its message pattern
// compiled once at handler construction.
type compiledCondition struct {
	severity models.Severity
	category models.Category
	pattern  *regexp.Regexp
}

func (c compiledCondition) matches(cls classification, message string) bool {
	if c.severity != "" && c.severity != cls.Severity {
		return false
	}
	if c.category != "" && c.category != cls.Category {
		return false
	}
	if c.pattern != nil && !c.pattern.MatchString(message) {
		return false
	}
	return true
}

func compileConditions(conditions []FallbackCondition) ([]compiledCondition, error) {
	compiled := make([]compiledCondition, 0, len(conditions))
	for i, cond := range conditions {
		cc := compiledCondition{severity: cond.Severity, category: cond.Category}
		if cond.MessagePattern != "" {
			p, err := regexp.Compile(cond.MessagePattern)
			if err != nil {
				return nil, fmt.Errorf("fallback condition %d: bad message pattern: %w", i, err)
			}
			cc.pattern = p
		}
		compiled = append(compiled, cc)
	}
	return compiled, nil
}

// fallback substitutes an outcome for an error that matches at least one
// configured condition. With no match, the original error is rethrown
// unchanged. Strategies run in configuration order; the first that does not
// itself fail wins, and if every one fails the original error is returned.
func (h *Handler) fallback(ctx context.Context, rec *models.FailureRecord, cause error, _ Operation) (any, error) {
	cls := classify(cause)

	matched := false
	for _, cond := range h.conditions {
		if cond.matches(cls, cause.Error()) {
			matched = true
			break
		}
	}
	if !matched {
		h.log.Debug("no fallback condition matched",
			logging.String("failure_id", rec.ID),
			logging.String("category", string(cls.Category)),
			logging.String("severity", string(cls.Severity)))
		return nil, cause
	}

	for _, strat := range h.cfg.Fallback.Strategies {
		h.emit(events.Event{
			Type:      events.TypeFallbackAttempt,
			FailureID: rec.ID,
			TaskID:    rec.TaskID,
			Strategy:  string(strat.Type),
		})
		val, err := h.applyFallback(ctx, strat, rec, cls)
		if err == nil {
			return val, nil
		}
		h.log.Warn("fallback strategy failed",
			logging.String("failure_id", rec.ID),
			logging.String("strategy", string(strat.Type)),
			logging.Error(err))
	}

	return nil, cause
}

func (h *Handler) applyFallback(ctx context.Context, strat FallbackStrategy, rec *models.FailureRecord, cls classification) (any, error) {
	switch strat.Type {
	case FallbackSkip:
		return models.Result{
			ID:        uuid.New().String(),
			TaskID:    rec.TaskID,
			Status:    models.StatusSkipped,
			Severity:  cls.Severity,
			Category:  cls.Category,
			Message:   "validation skipped by fallback policy",
			Timestamp: h.now(),
		}, nil
	case FallbackDefault:
		return models.Result{
			ID:       uuid.New().String(),
			TaskID:   rec.TaskID,
			Status:   models.StatusPassed,
			Severity: models.SeverityInfo,
			Category: cls.Category,
			Message:  "default result supplied by fallback policy",
			Details: map[string]any{
				"default_value": strat.Value,
			},
			Timestamp: h.now(),
		}, nil
	case FallbackAlternative:
		if h.alternative == nil {
			return nil, errors.New("no alternative operation configured")
		}
		return h.alternative(ctx)
	default:
		return nil, fmt.Errorf("unknown fallback strategy %q", strat.Type)
	}
}
