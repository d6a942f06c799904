// metrics.go - метрики Prometheus для циклов предсказания
package internal

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics собирает счётчики циклов, длительность стадий и размер таблиц.
type Metrics struct {
	Cycles          *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	Rows            *prometheus.GaugeVec
	LastProbability prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg. Для тестов удобно передавать
// prometheus.NewRegistry(), чтобы не трогать глобальный реестр.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reversal_cycles_total", Help: "Prediction cycles by outcome"},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reversal_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"stage"},
		),
		Rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "reversal_stage_rows", Help: "Rows left after a stage"},
			[]string{"stage", "symbol"},
		),
		LastProbability: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "reversal_last_probability", Help: "Last emitted reversal probability"},
		),
	}
	reg.MustRegister(m.Cycles, m.StageDuration, m.Rows, m.LastProbability)
	return m
}

// ObserveStage записывает длительность стадии с момента start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveRows записывает число строк по стадиям одного инструмента.
func (m *Metrics) ObserveRows(symbol string, rows StageRows) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues(StageExtract, symbol).Set(float64(rows.Extracted))
	m.Rows.WithLabelValues(StageTheta, symbol).Set(float64(rows.Normalized))
	m.Rows.WithLabelValues(StageDiff, symbol).Set(float64(rows.Differenced))
	m.Rows.WithLabelValues(StageClean, symbol).Set(float64(rows.Cleaned))
}

// ObserveCycle учитывает исход цикла; вероятность пишется только для успешных.
func (m *Metrics) ObserveCycle(outcome string, probability float64) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.LastProbability.Set(probability)
	}
}

// Serve поднимает /metrics на addr в отдельной горутине.
func Serve(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
