package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of text generation requests",
		Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34},
	}, []string{"provider", "model"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of failed text generation requests",
	}, []string{"provider", "model"})
)

func observeGeneration(provider, model string, start time.Time, err error) {
	generationDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
	if err != nil {
		generationFailures.WithLabelValues(provider, model).Inc()
	}
}
