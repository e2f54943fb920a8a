package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	containersTotal prometheus.Gauge
	execsTotal      *prometheus.CounterVec
	execDuration    *prometheus.HistogramVec
	circuitState    prometheus.Gauge
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		containersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sandbox_containers_total",
				Help:      "Number of live sandbox containers",
			},
		),
		execsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sandbox_execs_total",
				Help:      "Total script executions by status",
			},
			[]string{"status"},
		),
		execDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sandbox_exec_duration_seconds",
				Help:      "Duration of script executions",
				Buckets:   []float64{.1, .5, 1, 5, 10, 20, 60},
			},
			[]string{"status"},
		),
		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sandbox_circuit_breaker_state",
				Help:      "Circuit breaker state: 0=closed, 1=open, 2=half-open",
			},
		),
	}

	reg.MustRegister(m.containersTotal, m.execsTotal, m.execDuration, m.circuitState)
	return m
}

func (m *Metrics) RecordExec(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.execsTotal.WithLabelValues(status).Inc()
	m.execDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) SetContainerCount(n int) {
	if m == nil {
		return
	}
	m.containersTotal.Set(float64(n))
}

func (m *Metrics) SetCircuitState(state CircuitState) {
	if m == nil {
		return
	}
	m.circuitState.Set(float64(state))
}
