package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("codr.indexer")

var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codr",
		Name:      "index_builds_total",
		Help:      "Index builds by outcome",
	}, []string{"status"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codr",
		Name:      "index_build_duration_seconds",
		Help:      "Wall time of a full index build",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codr",
		Name:      "index_files_total",
		Help:      "Files seen by the indexer by result",
	}, []string{"result"})

	entitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codr",
		Name:      "index_entities_total",
		Help:      "Entities extracted by kind",
	}, []string{"kind"})
)
