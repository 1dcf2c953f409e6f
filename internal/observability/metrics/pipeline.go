// Package metrics provides Prometheus metric collectors for the detection pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the submission, triage and
// aggregation pipeline.
type PipelineMetrics struct {
	registry *prometheus.Registry

	// Submission metrics
	submissionsTotal    *prometheus.CounterVec
	classifierDuration  prometheus.Histogram
	matchesReturnedHist prometheus.Histogram

	// Triage metrics
	reportsTotal *prometheus.CounterVec

	// Feed metrics
	feedRecordsTotal *prometheus.CounterVec

	// Analytics and export metrics
	analyticsDuration prometheus.Histogram
	exportsTotal      *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deeptracer_submissions_total",
			Help: "Total number of classification submissions",
		},
		[]string{"result"}, // result: fake, real, invalid_input, network_error, service_error
	)

	m.classifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deeptracer_classifier_request_duration_seconds",
			Help:    "Time taken for classification service requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.matchesReturnedHist = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deeptracer_matches_returned",
			Help:    "Number of reverse-search matches kept per submission",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	m.reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deeptracer_reports_total",
			Help: "Total number of match results newly marked as reported",
		},
		[]string{"operation"}, // operation: report, report_all
	)

	m.feedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deeptracer_feed_records_total",
			Help: "Historical feed records by merge outcome",
		},
		[]string{"outcome"}, // outcome: merged, duplicate, malformed
	)

	m.analyticsDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deeptracer_analytics_process_duration_seconds",
			Help:    "Time taken to filter and aggregate the detection log",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	m.exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deeptracer_exports_total",
			Help: "Total number of export downloads",
		},
		[]string{"format"}, // format: csv, table
	)
}

func (m *PipelineMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.submissionsTotal,
		m.classifierDuration,
		m.matchesReturnedHist,
		m.reportsTotal,
		m.feedRecordsTotal,
		m.analyticsDuration,
		m.exportsTotal,
	}
}

// Describe implements prometheus.Collector
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordSubmission increments the submission counter for the given result.
func (m *PipelineMetrics) RecordSubmission(result string) {
	m.submissionsTotal.WithLabelValues(result).Inc()
}

// RecordClassifierDuration observes one classification round trip in seconds.
func (m *PipelineMetrics) RecordClassifierDuration(seconds float64) {
	m.classifierDuration.Observe(seconds)
}

// RecordMatchesReturned observes how many matches were kept after the cap.
func (m *PipelineMetrics) RecordMatchesReturned(count int) {
	m.matchesReturnedHist.Observe(float64(count))
}

// RecordReports adds newly reported matches for the given operation kind.
func (m *PipelineMetrics) RecordReports(operation string, count int) {
	if count > 0 {
		m.reportsTotal.WithLabelValues(operation).Add(float64(count))
	}
}

// RecordFeedRecords adds feed records for the given merge outcome.
func (m *PipelineMetrics) RecordFeedRecords(outcome string, count int) {
	if count > 0 {
		m.feedRecordsTotal.WithLabelValues(outcome).Add(float64(count))
	}
}

// RecordAnalyticsDuration observes one Process call in seconds.
func (m *PipelineMetrics) RecordAnalyticsDuration(seconds float64) {
	m.analyticsDuration.Observe(seconds)
}

// RecordExport increments the export counter for the given format.
func (m *PipelineMetrics) RecordExport(format string) {
	m.exportsTotal.WithLabelValues(format).Inc()
}
