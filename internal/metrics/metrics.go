// Package metrics exposes Prometheus instrumentation for the graph
// pipeline: ingests, queries, edits, and durable writes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// IngestTotal counts ingest jobs by outcome.
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_ingest_total",
			Help: "Total number of document ingest jobs processed",
		},
		[]string{"outcome"},
	)

	// IngestDuration tracks how long ingest jobs take end to end.
	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loom_ingest_duration_seconds",
			Help:    "Duration of document ingest jobs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// QueryTotal counts answer-context queries by result.
	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_query_total",
			Help: "Total number of answer-context queries",
		},
		[]string{"result"},
	)

	// QueryDuration tracks subgraph selection latency.
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loom_query_duration_seconds",
			Help:    "Duration of subgraph selection",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EditTotal counts structural edits by operation and outcome.
	EditTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_edit_total",
			Help: "Total number of structural graph edits",
		},
		[]string{"operation", "outcome"},
	)

	// PersistTotal counts durable snapshot writes by outcome.
	PersistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_persist_total",
			Help: "Total number of durable snapshot writes",
		},
		[]string{"outcome"},
	)

	// GraphNodes and GraphEdges track the current graph size.
	GraphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loom_graph_nodes",
			Help: "Number of nodes in the current graph snapshot",
		},
	)
	GraphEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loom_graph_edges",
			Help: "Number of edges in the current graph snapshot",
		},
	)
)

func init() {
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(EditTotal)
	prometheus.MustRegister(PersistTotal)
	prometheus.MustRegister(GraphNodes)
	prometheus.MustRegister(GraphEdges)
}
