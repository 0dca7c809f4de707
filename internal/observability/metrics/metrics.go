package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeploymentMetrics exposes counters/histograms for the provisioning pipeline.
type DeploymentMetrics struct {
	requestsCreated   prometheus.Counter
	statusApplied     *prometheus.CounterVec
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram
	dispatchFailures  prometheus.Counter
}

func NewDeploymentMetrics(reg prometheus.Registerer) *DeploymentMetrics {
	m := &DeploymentMetrics{
		requestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "provision",
			Subsystem: "deployment",
			Name:      "requests_created_total",
			Help:      "Total deployment requests submitted for approval",
		}),
		statusApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provision",
			Subsystem: "deployment",
			Name:      "status_transitions_total",
			Help:      "Status transition attempts by target status and whether they applied",
		}, []string{"status", "applied"}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provision",
			Subsystem: "execution",
			Name:      "runs_total",
			Help:      "Command executions by outcome",
		}, []string{"outcome"}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "provision",
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of provisioning command executions",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "provision",
			Subsystem: "approval",
			Name:      "dispatch_failures_total",
			Help:      "Approval prompt publishes that fell back to the outbox",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsCreated, m.statusApplied, m.executionsTotal, m.executionDuration, m.dispatchFailures)
	return m
}

func (m *DeploymentMetrics) ObserveRequestCreated() {
	if m == nil {
		return
	}
	m.requestsCreated.Inc()
}

func (m *DeploymentMetrics) ObserveStatusApplied(status string, applied bool) {
	if m == nil {
		return
	}
	label := "false"
	if applied {
		label = "true"
	}
	m.statusApplied.WithLabelValues(status, label).Inc()
}

func (m *DeploymentMetrics) ObserveExecution(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(outcome).Inc()
	m.executionDuration.Observe(seconds)
}

func (m *DeploymentMetrics) ObserveDispatchFailure() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}
