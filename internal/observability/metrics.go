package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	studentReportsTotal  *prometheus.CounterVec
	reportBatchesTotal   *prometheus.CounterVec
	reportBatchesSeconds *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the report API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weekly_report_http_requests_total",
			Help: "Total number of report API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weekly_report_http_latency_seconds",
			Help:    "Latency distribution for report API requests.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weekly_report_http_errors_total",
			Help: "Total number of error responses returned by report endpoints.",
		}, []string{"method", "route", "status"})

		studentReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weekly_report_student_sections_total",
			Help: "Student sections produced, by outcome.",
		}, []string{"status"})

		reportBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weekly_report_batches_total",
			Help: "Report invocations, by outcome and artifact format.",
		}, []string{"status", "format"})

		reportBatchesSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weekly_report_batch_duration_seconds",
			Help:    "Wall time of a full report invocation.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"format"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			studentReportsTotal, reportBatchesTotal, reportBatchesSeconds)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// StudentReports counts student sections by status (generated, failed, no_data).
func StudentReports() *prometheus.CounterVec {
	RegisterMetrics()
	return studentReportsTotal
}

// ReportBatches counts invocations by result status and format.
func ReportBatches() *prometheus.CounterVec {
	RegisterMetrics()
	return reportBatchesTotal
}

// ReportBatchDuration observes invocation wall time.
func ReportBatchDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return reportBatchesSeconds
}
