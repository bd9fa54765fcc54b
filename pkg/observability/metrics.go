// Copyright 2026 Lectern Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsIngested prometheus.Counter
	FilesFailed       prometheus.Counter
	ChunksIndexed     prometheus.Counter
	DuplicatesDropped *prometheus.CounterVec
	EmbeddingFailures prometheus.Counter
	QueriesTotal      prometheus.Counter
	QueryDuration     prometheus.Histogram
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DocumentsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "lectern_documents_ingested_total",
			Help: "Documents fully processed by the ingest pipeline.",
		}),
		FilesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lectern_files_failed_total",
			Help: "Source files that failed parsing or indexing.",
		}),
		ChunksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lectern_chunks_indexed_total",
			Help: "Chunks written to the hybrid store.",
		}),
		DuplicatesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_duplicates_dropped_total",
			Help: "Chunks dropped by ingest-time deduplication.",
		}, []string{"stage"}),
		EmbeddingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lectern_embedding_failures_total",
			Help: "Chunks indexed with a zero vector after embedding retries.",
		}),
		QueriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lectern_queries_total",
			Help: "Retrieval queries served.",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lectern_query_duration_seconds",
			Help:    "End-to-end retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordJob folds final ingest job counts into the counters.
func (m *Metrics) RecordJob(processed, failed, chunks, duplicatesExact, duplicatesNear, embedFailures int) {
	m.DocumentsIngested.Add(float64(processed))
	m.FilesFailed.Add(float64(failed))
	m.ChunksIndexed.Add(float64(chunks))
	m.DuplicatesDropped.WithLabelValues("exact").Add(float64(duplicatesExact))
	m.DuplicatesDropped.WithLabelValues("near").Add(float64(duplicatesNear))
	m.EmbeddingFailures.Add(float64(embedFailures))
}
