package workers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PoolMetrics struct {
	workersTotal  prometheus.Gauge
	workersBusy   prometheus.Gauge
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	capacityHits  prometheus.Counter
	reclaimsTotal prometheus.Counter
}

func NewPoolMetrics(namespace string, reg prometheus.Registerer) *PoolMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PoolMetrics{
		workersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_workers_total",
			Help:      "Number of live workers",
		}),
		workersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_workers_busy",
			Help:      "Number of busy workers",
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_tasks_total",
			Help:      "Tasks dispatched to workers by status",
		}, []string{"status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_task_duration_seconds",
			Help:      "Duration of worker task executions",
			Buckets:   []float64{.1, .5, 1, 5, 10, 20, 60},
		}, []string{"status"}),
		capacityHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_capacity_hits_total",
			Help:      "Dispatch attempts rejected because the pool was full",
		}),
		reclaimsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_idle_reclaims_total",
			Help:      "Workers reclaimed for exceeding the idle threshold",
		}),
	}

	reg.MustRegister(
		m.workersTotal,
		m.workersBusy,
		m.tasksTotal,
		m.taskDuration,
		m.capacityHits,
		m.reclaimsTotal,
	)
	return m
}

func (m *PoolMetrics) RecordTask(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(status).Inc()
	m.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *PoolMetrics) SetWorkerCounts(total, busy int) {
	if m == nil {
		return
	}
	m.workersTotal.Set(float64(total))
	m.workersBusy.Set(float64(busy))
}

func (m *PoolMetrics) RecordCapacityHit() {
	if m == nil {
		return
	}
	m.capacityHits.Inc()
}

func (m *PoolMetrics) RecordReclaim() {
	if m == nil {
		return
	}
	m.reclaimsTotal.Inc()
}
