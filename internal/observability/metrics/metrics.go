package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for lead pipeline operations.
type LeadMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	submissionsTotal  *prometheus.CounterVec
	notificationTotal *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "leads",
			Name:      "operations_total",
			Help:      "Total lead service operations by outcome",
		}, []string{"operation", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crm",
			Subsystem: "leads",
			Name:      "operation_latency_seconds",
			Help:      "Latency of lead service operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Accepted public lead submissions by source",
		}, []string{"source"}),
		notificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "leads",
			Name:      "notifications_total",
			Help:      "New-lead notification attempts by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationLatency, m.submissionsTotal, m.notificationTotal)
	return m
}

// ObserveOperation records one service call and its latency.
func (m *LeadMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *LeadMetrics) ObserveSubmission(source string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(source).Inc()
}

func (m *LeadMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notificationTotal.WithLabelValues(status).Inc()
}
