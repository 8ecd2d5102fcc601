package bench

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
)

// Metrics are the prometheus collectors the runner updates.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	verdictsTotal *prometheus.CounterVec
	inference     *prometheus.HistogramVec
	correctness   *prometheus.HistogramVec
	inFlight      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenbench_runs_total",
			Help: "Benchmark runs completed by model, format and status.",
		}, []string{"model", "format", "status"}),
		verdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenbench_verdicts_total",
			Help: "Validated commands by model and verdict kind.",
		}, []string{"model", "kind"}),
		inference: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenbench_inference_seconds",
			Help:    "Inference latency by model.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"model"}),
		correctness: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenbench_correctness",
			Help:    "Per-run correctness score by model and format.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"model", "format"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greenbench_runs_in_flight",
			Help: "Runs currently executing.",
		}),
	}
	reg.MustRegister(m.runsTotal, m.verdictsTotal, m.inference, m.correctness, m.inFlight)
	return m
}

func (m *Metrics) observe(rec results.RunRecord) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(rec.Model, string(rec.Format), string(rec.Status)).Inc()
	for _, v := range rec.Verdicts {
		m.verdictsTotal.WithLabelValues(rec.Model, string(v.Verdict.Kind)).Inc()
	}
	if rec.Status == results.StatusSuccess {
		m.inference.WithLabelValues(rec.Model).Observe(rec.Usage.InferenceMS / 1000)
		m.correctness.WithLabelValues(rec.Model, string(rec.Format)).Observe(rec.Scores.Correctness)
	}
}

func (m *Metrics) start() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) done() {
	if m != nil {
		m.inFlight.Dec()
	}
}
