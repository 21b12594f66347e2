// Package metrics exposes Prometheus instrumentation for the validation
// engine and the failure handler. A Recorder is fed from the event stream,
// so the instrumented packages stay free of metrics plumbing.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/edekker/vigil/pkg/events"
)

// Recorder translates engine and failure events into Prometheus metrics.
type Recorder struct {
	validations   *prometheus.CounterVec
	rulesExecuted *prometheus.CounterVec
	ruleDuration  prometheus.Histogram

	failures         *prometheus.CounterVec
	retries          prometheus.Counter
	recoveries       prometheus.Counter
	recoveryDuration prometheus.Histogram
	breakerOpens     prometheus.Counter
	fallbacks        *prometheus.CounterVec
	escalations      prometheus.Counter
}

// NewRecorder registers the vigil metrics with the given registerer. Pass
// prometheus.DefaultRegisterer for the process-wide registry, or a private
// registry in tests and embedded setups.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_validations_total",
			Help: "Validation cycles by terminal status.",
		}, []string{"status"}),
		rulesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_rules_executed_total",
			Help: "Rule executions by category and result status.",
		}, []string{"category", "status"}),
		ruleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_rule_duration_seconds",
			Help:    "Wall-clock duration of rule executions.",
			Buckets: prometheus.DefBuckets,
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_failures_total",
			Help: "Failures handled, by category and severity.",
		}, []string{"category", "severity"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_retries_total",
			Help: "Retry attempts across every strategy.",
		}),
		recoveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_recoveries_total",
			Help: "Failures that a recovery strategy resolved.",
		}),
		recoveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_recovery_duration_seconds",
			Help:    "Time from failure detection to resolution.",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		}),
		breakerOpens: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_circuit_breaker_opens_total",
			Help: "Circuit breaker transitions to the open state.",
		}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_fallbacks_total",
			Help: "Fallback strategy attempts, by strategy type.",
		}, []string{"strategy"}),
		escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_escalations_total",
			Help: "Escalation levels triggered.",
		}),
	}
}

// Record updates the metrics touched by a single event. Events that carry
// no metric are ignored.
func (r *Recorder) Record(ev events.Event) {
	switch ev.Type {
	case events.TypeValidationCompleted:
		status := "passed"
		if ev.Report != nil && !ev.Report.Success() {
			status = "failed"
		}
		r.validations.WithLabelValues(status).Inc()
	case events.TypeValidationFailed:
		r.validations.WithLabelValues("aborted").Inc()
	case events.TypeRuleCompleted:
		if ev.Result != nil {
			r.rulesExecuted.WithLabelValues(string(ev.Result.Category), string(ev.Result.Status)).Inc()
			r.ruleDuration.Observe(ev.Result.Duration.Seconds())
		}
	case events.TypeRuleFailed:
		r.rulesExecuted.WithLabelValues("unknown", "error").Inc()
	case events.TypeFailureDetected:
		if ev.Record != nil {
			r.failures.WithLabelValues(string(ev.Record.Category), string(ev.Record.Severity)).Inc()
		}
	case events.TypeRetryAttempt:
		r.retries.Inc()
	case events.TypeFailureResolved:
		r.recoveries.Inc()
		if ev.Record != nil {
			r.recoveryDuration.Observe(ev.Record.RecoveryTime.Seconds())
		}
	case events.TypeCircuitBreakerOpened:
		r.breakerOpens.Inc()
	case events.TypeFallbackAttempt:
		r.fallbacks.WithLabelValues(ev.Strategy).Inc()
	case events.TypeEscalationTriggered:
		r.escalations.Inc()
	}
}

// Run consumes events until the channel closes or the context is cancelled.
// It is intended to be started as a goroutine over Engine.Events() or
// Handler.Events().
func (r *Recorder) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.Record(ev)
		}
	}
}
