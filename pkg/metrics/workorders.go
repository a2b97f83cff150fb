package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transition sources label who drove a status change.
const (
	SourceLifecycle  = "lifecycle"
	SourceAssignment = "assignment"
	SourceCollector  = "collector"
)

// WorkOrderMetrics counts lifecycle activity on work orders.
type WorkOrderMetrics struct {
	transitions   *prometheus.CounterVec
	completions   *prometheus.CounterVec
	numbersIssued prometheus.Counter
}

// NewWorkOrderMetrics registers the work order metrics on the provided registerer.
func NewWorkOrderMetrics(reg prometheus.Registerer) *WorkOrderMetrics {
	if reg == nil {
		return &WorkOrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "work_order_status_transitions_total",
		Help: "Work order status changes by origin status, target status and source.",
	}, []string{"from", "to", "source"})
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_completions_total",
		Help: "Assignment completions by whether they completed the parent order.",
	}, []string{"outcome"})
	issued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "work_order_numbers_issued_total",
		Help: "Order numbers issued on creation.",
	})
	reg.MustRegister(transitions, completions, issued)
	return &WorkOrderMetrics{
		transitions:   transitions,
		completions:   completions,
		numbersIssued: issued,
	}
}

// ObserveTransition records a status change. Empty from means the order was just created.
func (m *WorkOrderMetrics) ObserveTransition(from, to, source string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(source)).Inc()
}

// ObserveCompletion records an assignment completion; orderCompleted marks the cascade case.
func (m *WorkOrderMetrics) ObserveCompletion(orderCompleted bool) {
	if m == nil || m.completions == nil {
		return
	}
	outcome := "partial"
	if orderCompleted {
		outcome = "order_completed"
	}
	m.completions.WithLabelValues(outcome).Inc()
}

// IncNumbersIssued counts a freshly issued order number.
func (m *WorkOrderMetrics) IncNumbersIssued() {
	if m == nil || m.numbersIssued == nil {
		return
	}
	m.numbersIssued.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
