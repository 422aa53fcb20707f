package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus-метрики движка.
//
// Экспортируются через /metrics долгоживущими процессами
// (scheduler-демон). Nil-безопасны: методы на nil *Metrics —
// no-op, разовые CLI-вызовы работают без регистрации.
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

// NewMetrics создаёт и регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakehouse",
			Name:      "runs_total",
			Help:      "Finished runs by terminal status.",
		}, []string{"status"}),

		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakehouse",
			Name:      "jobs_total",
			Help:      "Finished jobs by terminal status.",
		}, []string{"status", "stage"}),

		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bakehouse",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock job duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s .. ~2.3h
		}, []string{"stage"}),
	}
}

// ObserveRun учитывает завершённый run.
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

// ObserveJob учитывает job, достигший терминального статуса.
func (m *Metrics) ObserveJob(status, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status, stage).Inc()
	if d > 0 {
		m.jobDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}
