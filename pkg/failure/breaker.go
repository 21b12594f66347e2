package failure

import (
	"context"
	"fmt"
	"time"

	"github.com/edekker/vigil/pkg/events"
	"github.com/edekker/vigil/pkg/logging"
)

// State represents the circuit breaker automaton state.
type State int

const (
	// StateClosed allows calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls without invoking the operation.
	StateOpen
	// StateHalfOpen allows probe calls to test recovery.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerStats is a point-in-time snapshot of one circuit breaker.
type BreakerStats struct {
	// Key identifies the breaker.
	Key string
	// State is the automaton state at snapshot time.
	State State
	// FailureCount is the total failures observed since the last success
	// or reset.
	FailureCount int
	// WindowFailures is the failure count inside the current monitoring
	// window.
	WindowFailures int
	// HalfOpenAttempts is the number of failed half-open probes.
	HalfOpenAttempts int
	// LastFailureTime is when the breaker last recorded a failure that
	// opened it.
	LastFailureTime time.Time
}

// circuitBreaker tracks failures for one key. All methods assume the
// registry lock is held.
type circuitBreaker struct {
	key              string
	state            State
	failureCount     int
	lastFailureTime  time.Time
	halfOpenAttempts int
	windowStart      time.Time
	windowFailures   int
	lastUsed         time.Time
}

// beforeCall decides whether a call may proceed, moving an open breaker to
// half-open once the recovery timeout has elapsed.
func (cb *circuitBreaker) beforeCall(now time.Time, cfg BreakerConfig) error {
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.lastFailureTime) >= cfg.RecoveryTimeout {
			cb.state = StateHalfOpen
			cb.halfOpenAttempts = 0
			return nil
		}
		retryAt := cb.lastFailureTime.Add(cfg.RecoveryTimeout)
		return fmt.Errorf("%w: %s rejects calls until %s", ErrCircuitOpen, cb.key, retryAt.Format(time.RFC3339))
	default:
		return nil
	}
}

// afterCall records the call outcome and returns true when the breaker
// transitioned to open.
func (cb *circuitBreaker) afterCall(now time.Time, cfg BreakerConfig, failed bool) bool {
	if !failed {
		if cb.state == StateHalfOpen {
			cb.reset()
		} else {
			cb.failureCount = 0
		}
		return false
	}

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.windowStart.IsZero() || now.Sub(cb.windowStart) > cfg.MonitoringWindow {
			cb.windowStart = now
			cb.windowFailures = 1
		} else {
			cb.windowFailures++
		}
		if cb.windowFailures >= cfg.FailureThreshold {
			cb.state = StateOpen
			cb.lastFailureTime = now
			return true
		}
	case StateHalfOpen:
		cb.failureCount++
		cb.halfOpenAttempts++
		if cb.halfOpenAttempts >= cfg.HalfOpenMaxAttempts {
			cb.state = StateOpen
			cb.lastFailureTime = now
			return true
		}
	}
	return false
}

// reset forces the breaker closed with all counters zeroed.
func (cb *circuitBreaker) reset() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
	cb.halfOpenAttempts = 0
	cb.windowStart = time.Time{}
	cb.windowFailures = 0
}

func (cb *circuitBreaker) stats() BreakerStats {
	return BreakerStats{
		Key:              cb.key,
		State:            cb.state,
		FailureCount:     cb.failureCount,
		WindowFailures:   cb.windowFailures,
		HalfOpenAttempts: cb.halfOpenAttempts,
		LastFailureTime:  cb.lastFailureTime,
	}
}

// breakerKey derives the breaker key for a task.
func breakerKey(taskID string) string {
	return "circuit-" + taskID
}

// execute routes an operation through the breaker for the given key,
// creating the breaker lazily.
func (h *Handler) executeWithBreaker(ctx context.Context, key string, op Operation) (any, error) {
	h.mu.Lock()
	cb := h.breakerLocked(key)
	cb.lastUsed = h.now()
	err := cb.beforeCall(h.now(), h.cfg.CircuitBreaker)
	h.mu.Unlock()

	if err != nil {
		h.log.Warn("circuit breaker rejected call",
			logging.String("breaker_key", key))
		return nil, err
	}

	val, opErr := op(ctx)

	h.mu.Lock()
	opened := cb.afterCall(h.now(), h.cfg.CircuitBreaker, opErr != nil)
	failures := cb.failureCount
	h.mu.Unlock()

	if opened {
		h.log.Warn("circuit breaker opened",
			logging.String("breaker_key", key),
			logging.Int("failure_count", failures))
		h.emit(events.Event{
			Type:         events.TypeCircuitBreakerOpened,
			BreakerKey:   key,
			FailureCount: failures,
		})
	}
	return val, opErr
}

// breakerLocked returns the breaker for key, creating it if needed and
// evicting the least recently used breaker when over the retention cap.
// Assumes h.mu is held.
func (h *Handler) breakerLocked(key string) *circuitBreaker {
	if cb, ok := h.breakers[key]; ok {
		return cb
	}

	if maxBreakers := h.cfg.Retention.MaxBreakers; maxBreakers > 0 && len(h.breakers) >= maxBreakers {
		var oldestKey string
		var oldest time.Time
		for k, cb := range h.breakers {
			if oldestKey == "" || cb.lastUsed.Before(oldest) {
				oldestKey = k
				oldest = cb.lastUsed
			}
		}
		if oldestKey != "" {
			delete(h.breakers, oldestKey)
		}
	}

	cb := &circuitBreaker{key: key, state: StateClosed}
	h.breakers[key] = cb
	return cb
}

// CircuitBreakerState reports the state of the breaker for key, if one
// exists.
func (h *Handler) CircuitBreakerState(key string) (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cb, ok := h.breakers[key]
	if !ok {
		return StateClosed, false
	}
	return cb.state, true
}

// CircuitBreakers returns a snapshot of every tracked breaker.
func (h *Handler) CircuitBreakers() []BreakerStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]BreakerStats, 0, len(h.breakers))
	for _, cb := range h.breakers {
		out = append(out, cb.stats())
	}
	return out
}

// ResetCircuitBreaker forces the breaker for key closed with all counters
// zeroed. It returns false if no breaker exists for the key.
func (h *Handler) ResetCircuitBreaker(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cb, ok := h.breakers[key]
	if !ok {
		return false
	}
	cb.reset()
	return true
}
