package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	registry *prometheus.Registry

	// uploads counts accepted uploads per pipeline
	uploads *prometheus.CounterVec
	// runs counts pipeline executions by outcome: ok, invalid or error
	runs *prometheus.CounterVec
	// duration tracks load + pipeline latency
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recoveryplot_uploads_total",
			Help: "Total accepted uploads by pipeline",
		}, []string{"pipeline"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recoveryplot_pipeline_runs_total",
			Help: "Total pipeline runs by pipeline and result",
		}, []string{"pipeline", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recoveryplot_pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"pipeline"}),
	}
}
