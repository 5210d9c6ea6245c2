package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// Tracer is a no-op unless the embedding program installs a provider.
var Tracer = otel.Tracer("github.com/nulifyer/nuglyph")

// Catalog query outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Replacement outcomes.
const (
	ReplaceOK       = "ok"
	ReplaceNotFound = "not_found"
	ReplaceError    = "error"
)

var (
	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nuglyph_pass_seconds",
		Help:    "Time spent on one parse, resolve and publish pass.",
		Buckets: prometheus.DefBuckets,
	})

	PassReferences = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nuglyph_pass_references",
		Help: "Number of resolved references published by the latest pass.",
	})

	CatalogQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nuglyph_catalog_queries_total",
		Help: "Total number of version catalog queries by outcome.",
	}, []string{"outcome"})

	CatalogQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nuglyph_catalog_query_seconds",
		Help:    "Latency of version catalog queries.",
		Buckets: prometheus.DefBuckets,
	})

	Replacements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nuglyph_replacements_total",
		Help: "Total number of version replacements by outcome.",
	}, []string{"outcome"})
)
