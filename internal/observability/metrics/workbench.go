package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// WorkbenchMetrics counts domain outcomes and resilience events.
type WorkbenchMetrics struct {
	service string

	classifications *prometheus.CounterVec
	extractions     *prometheus.CounterVec
	extractedFields prometheus.Histogram
	refinements     *prometheus.CounterVec
	refinedFields   prometheus.Histogram
	regionFills     prometheus.Histogram
	evolutions      *prometheus.CounterVec
	retries         *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

func NewWorkbenchMetrics(service string, registerer prometheus.Registerer) *WorkbenchMetrics {
	fieldBuckets := []float64{0, 1, 2, 5, 10, 20, 40, 80}
	m := &WorkbenchMetrics{
		service: service,
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workbench",
			Name:      "classifications_total",
			Help:      "Classified documents by assigned type and whether the fallback was used.",
		}, []string{"service", "doc_type", "fallback"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workbench",
			Name:      "extractions_total",
			Help:      "Extraction runs by status.",
		}, []string{"service", "status"}),
		extractedFields: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "workbench",
			Name:        "extracted_fields",
			Help:        "Fields per successful extraction run.",
			Buckets:     fieldBuckets,
			ConstLabels: prometheus.Labels{"service": service},
		}),
		refinements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workbench",
			Name:      "refinements_total",
			Help:      "Refinement runs by status.",
		}, []string{"service", "status"}),
		refinedFields: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "workbench",
			Name:        "refined_fields",
			Help:        "Fields changed per successful refinement.",
			Buckets:     fieldBuckets,
			ConstLabels: prometheus.Labels{"service": service},
		}),
		regionFills: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "workbench",
			Name:        "region_filled_fields",
			Help:        "Fields filled per region analysis.",
			Buckets:     fieldBuckets,
			ConstLabels: prometheus.Labels{"service": service},
		}),
		evolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workbench",
			Name:      "rule_evolutions_total",
			Help:      "Rule evolution attempts by status.",
		}, []string{"service", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried calls by operation.",
		}, []string{"service", "operation"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the operation's circuit breaker is not closed.",
		}, []string{"service", "operation"}),
	}
	registerer.MustRegister(
		m.classifications, m.extractions, m.extractedFields, m.refinements, m.refinedFields,
		m.regionFills, m.evolutions, m.retries, m.breakerState,
	)
	return m
}

func (m *WorkbenchMetrics) RecordClassification(docType domain.DocType, fallback bool) {
	m.classifications.WithLabelValues(m.service, string(docType), strconv.FormatBool(fallback)).Inc()
}

func (m *WorkbenchMetrics) RecordExtraction(status string, fields int) {
	m.extractions.WithLabelValues(m.service, status).Inc()
	if status == "succeeded" {
		m.extractedFields.Observe(float64(fields))
	}
}

func (m *WorkbenchMetrics) RecordRefinement(status string, changed int) {
	m.refinements.WithLabelValues(m.service, status).Inc()
	if status == "succeeded" {
		m.refinedFields.Observe(float64(changed))
	}
}

func (m *WorkbenchMetrics) RecordRegionAnalysis(filled int) {
	m.regionFills.Observe(float64(filled))
}

func (m *WorkbenchMetrics) RecordRuleEvolution(status string) {
	m.evolutions.WithLabelValues(m.service, status).Inc()
}

func (m *WorkbenchMetrics) ObserveRetry(operation string, _ int) {
	m.retries.WithLabelValues(m.service, operation).Inc()
}

func (m *WorkbenchMetrics) ObserveBreakerState(operation, state string) {
	value := 1.0
	if state == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
