package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "toil_engine"

var (
	once sync.Once

	triggerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_transitions_total",
			Help:      "Count of user-day trigger state transitions.",
		},
		[]string{"from", "to"},
	)

	accrualInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accrual_invocations_total",
			Help:      "Count of TOIL accrual computations by result.",
		},
		[]string{"result"},
	)

	coalescedTriggers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accrual_coalesced_total",
			Help:      "Count of triggers absorbed by an in-flight accrual computation.",
		},
	)

	staleObservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_total",
			Help:      "Count of discarded stale observations and accrual results.",
		},
		[]string{"kind"},
	)

	thresholdFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_read_fallback_total",
			Help:      "Count of threshold reads that fell back to defaults.",
		},
	)

	thresholdWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_write_failures_total",
			Help:      "Count of failed threshold writes.",
		},
	)

	dayEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_evaluations_total",
			Help:      "Count of day classifications by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			triggerTransitions,
			accrualInvocations,
			coalescedTriggers,
			staleObservations,
			thresholdFallbacks,
			thresholdWriteFailures,
			dayEvaluations,
		)
	})
}

func IncTriggerTransition(from, to string) {
	triggerTransitions.WithLabelValues(from, to).Inc()
}

// IncAccrualInvocation records an accrual call; result is "success" or "failure".
func IncAccrualInvocation(result string) {
	accrualInvocations.WithLabelValues(result).Inc()
}

func IncCoalescedTrigger() {
	coalescedTriggers.Inc()
}

// IncStale records a discarded stale item; kind is "observation" or "result".
func IncStale(kind string) {
	staleObservations.WithLabelValues(kind).Inc()
}

func IncThresholdFallback() {
	thresholdFallbacks.Inc()
}

func IncThresholdWriteFailure() {
	thresholdWriteFailures.Inc()
}

func IncDayEvaluation(outcome string) {
	dayEvaluations.WithLabelValues(outcome).Inc()
}
