// Package metrics records escrow operation outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	talentlayer "github.com/talentlayer/talentlayer-go"
)

const namespace = "talentlayer"

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the escrow metrics.
type Collector struct {
	Operations *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Approvals  prometheus.Counter
}

// NewCollector registers the escrow metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_operations_total",
			Help:      "Escrow operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_failures_total",
			Help:      "Failed escrow operations by the state they stopped in and error code",
		}, []string{"operation", "state", "code"}),

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "escrow_operation_duration_seconds",
			Help:      "Escrow operation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation", "outcome"}),

		Approvals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erc20_approvals_total",
			Help:      "ERC-20 approve transactions submitted before escrow creation",
		}),
	}
}

// Attach records every operation of c.
func (m *Collector) Attach(c *talentlayer.Client) {
	c.OnAfterOperation(m.observeSuccess)
	c.OnOperationFailure(m.observeFailure)
}

func (m *Collector) observeSuccess(rc talentlayer.OperationResultContext) error {
	op := string(rc.Operation)
	m.Operations.WithLabelValues(op, OutcomeSuccess).Inc()
	m.Duration.WithLabelValues(op, OutcomeSuccess).Observe(rc.Duration.Seconds())
	if rc.ApprovalTxHash != "" {
		m.Approvals.Inc()
	}
	return nil
}

func (m *Collector) observeFailure(fc talentlayer.OperationFailureContext) error {
	op := string(fc.Operation)
	m.Operations.WithLabelValues(op, OutcomeFailure).Inc()
	m.Duration.WithLabelValues(op, OutcomeFailure).Observe(fc.Duration.Seconds())

	code := fc.Code
	if code == "" {
		code = "unknown"
	}
	m.Failures.WithLabelValues(op, string(fc.State), code).Inc()
	return nil
}
