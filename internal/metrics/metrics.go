package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "invoice_generator_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	extractionTotal   *prometheus.CounterVec
	extractionLatency *prometheus.HistogramVec
	extractedItems    *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	activeSessions prometheus.Gauge
)

// Init registers the metrics with the default registry. It is safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		extractionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "extractions_total",
				Help: "Total extraction calls by provider and result",
			},
			[]string{"provider", "result"},
		)
		extractionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "extraction_latency_seconds",
				Help:    "Extraction call latency in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"provider", "result"},
		)
		extractedItems = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "extracted_line_items",
				Help:    "Line items returned per successful extraction",
				Buckets: prometheus.ExponentialBuckets(1, 2, 9),
			},
			[]string{"provider"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)
		activeSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_sessions",
				Help: "Composition sessions currently held in memory",
			},
		)

		prometheus.MustRegister(
			extractionTotal,
			extractionLatency,
			extractedItems,
			exportTotal,
			exportLatency,
			activeSessions,
		)
	})
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveExtraction records one extraction call.
func ObserveExtraction(provider string, elapsed time.Duration, items int, err error) {
	if extractionTotal == nil {
		return
	}
	result := resultLabel(err)
	extractionTotal.WithLabelValues(provider, result).Inc()
	extractionLatency.WithLabelValues(provider, result).Observe(elapsed.Seconds())
	if err == nil {
		extractedItems.WithLabelValues(provider).Observe(float64(items))
	}
}

// ObserveExport records one export.
func ObserveExport(format string, elapsed time.Duration, err error) {
	if exportTotal == nil {
		return
	}
	exportTotal.WithLabelValues(format, resultLabel(err)).Inc()
	exportLatency.WithLabelValues(format).Observe(elapsed.Seconds())
}

// SetActiveSessions reports the number of sessions held in memory.
func SetActiveSessions(n int) {
	if activeSessions == nil {
		return
	}
	activeSessions.Set(float64(n))
}
