package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	queueDepth     prometheus.Gauge
	tasksTotal     *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	retriesTotal   prometheus.Counter
	throttleEvents prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of queued tasks",
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks finished by terminal outcome",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "End-to-end task processing duration",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_retries_total",
			Help:      "Tasks re-queued after a retryable failure",
		}),
		throttleEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_events_total",
			Help:      "Monitor cycles that engaged throttling",
		}),
	}

	reg.MustRegister(
		m.queueDepth,
		m.tasksTotal,
		m.taskDuration,
		m.retriesTotal,
		m.throttleEvents,
	)
	return m
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) RecordTask(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(outcome).Inc()
	m.taskDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

func (m *Metrics) RecordThrottle() {
	if m == nil {
		return
	}
	m.throttleEvents.Inc()
}
