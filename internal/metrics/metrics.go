// Package metrics provides Prometheus metrics for evaluation runs.
// It counts scored rows, evaluated trees and flushed query groups, records per-row
// scoring latency and exposes the size of the loaded model and the final quality values.
//
// Metrics are exposed via the Prometheus endpoint started by cmd/treeval when a
// metrics port is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "treeval"

// Metrics holds all Prometheus metrics of the evaluator.
type Metrics struct {
	// Scoring metrics
	RowsScored     prometheus.Counter   // Total number of input rows scored
	TreesEvaluated prometheus.Counter   // Total number of tree walks
	RowLatency     prometheus.Histogram // Time to build, score and sink one row

	// Ranking metrics
	QueryGroups    prometheus.Counter   // Total number of query groups flushed
	QueryGroupSize prometheus.Histogram // Documents per flushed query group

	// Input metrics
	ParseErrors prometheus.Counter // Total number of unparsable input rows

	// Model metrics
	ModelTrees    prometheus.Gauge // Trees in the loaded ensemble
	ModelFeatures prometheus.Gauge // Features declared by the loaded ensemble

	// Run metrics
	RunsCompleted prometheus.Counter   // Runs that reached end of stream
	RunsFailed    prometheus.Counter   // Runs aborted by an error
	RunDuration   prometheus.Histogram // Wall time of a whole run
	QualityValue  *prometheus.GaugeVec // Final-generation value per quality metric
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RowsScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scored_total",
			Help:      "Total number of input rows scored",
		}),
		TreesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trees_evaluated_total",
			Help:      "Total number of tree walks",
		}),
		RowLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_latency_seconds",
			Help:      "Time to build, score and sink one row in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 20),
		}),
		QueryGroups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_groups_total",
			Help:      "Total number of query groups flushed to a ranking metric",
		}),
		QueryGroupSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_group_size",
			Help:      "Number of documents per flushed query group",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Total number of unparsable input rows",
		}),
		ModelTrees: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_trees",
			Help:      "Number of trees in the loaded ensemble",
		}),
		ModelFeatures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_features",
			Help:      "Number of features declared by the loaded ensemble",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of evaluation runs that reached end of stream",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of evaluation runs aborted by an error",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole evaluation run in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		QualityValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_value",
			Help:      "Final-generation value of each quality metric of the last run",
		}, []string{"metric"}),
	}
}
