package failure

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/logging"
	"github.com/edekker/vigil/pkg/models"
)

// defaultRetryableErrors are retried when neither configured list matches.
var defaultRetryableErrors = map[string]bool{
	"TimeoutError":    true,
	"NetworkError":    true,
	"ConnectionError": true,
}

// retryWithStrategy runs the shared retry loop: attempt, check
// retryability, check the attempt budget, wait, retry.
func (h *Handler) retryWithStrategy(ctx context.Context, strategy models.RecoveryStrategy, rec *models.FailureRecord, op Operation) (any, error) {
	cfg := h.cfg.Retry
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("retry aborted: %w", err)
		}

		val, err := op(ctx)
		h.countAttempt(rec)
		if err == nil {
			h.emit(events.Event{
				Type:      events.TypeRetrySuccess,
				FailureID: rec.ID,
				TaskID:    rec.TaskID,
				Attempt:   attempt,
				Strategy:  string(strategy),
			})
			return val, nil
		}
		lastErr = err

		if !h.isRetryable(err) {
			h.log.Debug("error is not retryable",
				logging.String("failure_id", rec.ID),
				logging.String("error_name", errorName(err)))
			return nil, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := h.retryDelay(strategy, attempt)
		h.emit(events.Event{
			Type:      events.TypeRetryAttempt,
			FailureID: rec.ID,
			TaskID:    rec.TaskID,
			Attempt:   attempt,
			Delay:     delay,
			Strategy:  string(strategy),
		})
		h.log.Debug("retrying after failure",
			logging.String("failure_id", rec.ID),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay))

		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("retry attempts exhausted after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// retryDelay computes the wait after the given 1-based failed attempt,
// applying jitter when enabled.
func (h *Handler) retryDelay(strategy models.RecoveryStrategy, attempt int) time.Duration {
	delay := backoffDelay(strategy, attempt, h.cfg.Retry)
	if h.cfg.Retry.Jitter && delay > 0 {
		delay += time.Duration(rand.Float64() * 0.1 * float64(delay))
	}
	return delay
}

// backoffDelay is the deterministic part of the delay schedule.
//
//	immediate:   0, 0, 0, ...
//	linear:      d, 2d, 3d, ...
//	exponential: d, d*m, d*m^2, ... capped at MaxDelay
func backoffDelay(strategy models.RecoveryStrategy, attempt int, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch strategy {
	case models.StrategyImmediateRetry:
		return 0
	case models.StrategyLinearBackoff:
		return cfg.InitialDelay * time.Duration(attempt)
	case models.StrategyExponentialBackoff:
		d := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
		if math.IsNaN(d) || math.IsInf(d, 0) || d > float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
		return time.Duration(d)
	default:
		return 0
	}
}

// isRetryable applies the retryability precedence: the non-retryable list
// wins, then the retryable list, then the built-in default set.
func (h *Handler) isRetryable(err error) bool {
	name := errorName(err)
	for _, n := range h.cfg.Retry.NonRetryableErrors {
		if n == name {
			return false
		}
	}
	for _, n := range h.cfg.Retry.RetryableErrors {
		if n == name {
			return true
		}
	}
	return defaultRetryableErrors[name]
}
