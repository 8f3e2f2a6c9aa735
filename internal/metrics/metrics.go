// Package metrics 暴露部署编排的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "site_provisioner"

// 编排结果标签值。
const (
	ResultSuccess  = "success"
	ResultPartial  = "partial"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// Metrics 为 nil 时所有方法都是空操作，便于测试中省略。
type Metrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	compensations *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_operations_total",
			Help:      "Number of orchestrator operations by operation and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "Duration of orchestrator operations.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Number of compensating actions by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.operations, m.duration, m.compensations)
	return m
}

func (m *Metrics) ObserveOperation(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCompensation(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.compensations.WithLabelValues(result).Inc()
}

// OperationCount 返回指定标签的计数，仅供测试和诊断使用。
func (m *Metrics) OperationCount(operation, result string) prometheus.Counter {
	return m.operations.WithLabelValues(operation, result)
}

// CompensationCount 返回指定结果的补偿计数。
func (m *Metrics) CompensationCount(result string) prometheus.Counter {
	return m.compensations.WithLabelValues(result)
}
