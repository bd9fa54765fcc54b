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

// Package search implements hybrid retrieval over the chunk store:
// query embedding, fused vector+BM25 ranking, query-time duplicate
// collapsing, and the out-of-scope predicate.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/dedup"
	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/lectern-ai/lectern/pkg/embedder"
	"github.com/lectern-ai/lectern/pkg/store"
)

const (
	minQueryLength = 2
	maxQueryLength = 10000
)

// Request is one retrieval query with optional facet constraints.
type Request struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`

	WeekNumber   int    `json:"week_number,omitempty"`
	ModuleName   string `json:"module_name,omitempty"`
	FileType     string `json:"file_type,omitempty"`
	AcademicYear string `json:"academic_year,omitempty"`
	DocumentID   string `json:"document_id,omitempty"`
}

// Result is one retrieved chunk with provenance and score breakdown.
type Result struct {
	Chunk       document.Chunk `json:"chunk"`
	Score       float64        `json:"score"`
	VectorScore float64        `json:"vector_score"`
	BM25Score   float64        `json:"bm25_score"`
}

// Response carries results plus query diagnostics.
type Response struct {
	Results     []Result `json:"results"`
	TotalHits   int      `json:"total_hits"`
	QueryTimeMs int64    `json:"query_time_ms"`
}

// Metrics counts engine activity.
type Metrics struct {
	Queries    atomic.Int64
	Collapsed  atomic.Int64
	EmbedFails atomic.Int64
}

// Engine answers retrieval queries against the hybrid store.
type Engine struct {
	store     *store.HybridStore
	embedder  embedder.Embedder
	retrieval config.RetrievalConfig
	dedupCfg  config.DedupConfig

	metrics Metrics
}

// NewEngine creates a search engine.
func NewEngine(st *store.HybridStore, emb embedder.Embedder, retrieval config.RetrievalConfig, dedupCfg config.DedupConfig) *Engine {
	return &Engine{
		store:     st,
		embedder:  emb,
		retrieval: retrieval,
		dedupCfg:  dedupCfg,
	}
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return &e.metrics
}

// Search runs one hybrid query. Candidate retrieval uses double the
// requested depth so duplicate collapsing does not thin the final page.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	e.metrics.Queries.Add(1)

	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryLength {
		return nil, fmt.Errorf("query too short: need at least %d characters", minQueryLength)
	}
	if len(query) > maxQueryLength {
		return nil, fmt.Errorf("query too long: at most %d characters", maxQueryLength)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.retrieval.TopK
	}

	queryVector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.metrics.EmbedFails.Add(1)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := e.store.HybridSearch(ctx, query, queryVector, topK*2, buildFilter(req))
	if err != nil {
		return nil, err
	}
	totalHits := len(scored)

	kept := e.collapse(scored)
	if len(kept) > topK {
		kept = kept[:topK]
	}

	results := make([]Result, len(kept))
	for i, sc := range kept {
		results[i] = Result{
			Chunk:       sc.Chunk,
			Score:       sc.Score,
			VectorScore: sc.VectorScore,
			BM25Score:   sc.BM25Score,
		}
	}

	return &Response{
		Results:     results,
		TotalHits:   totalHits,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// collapse drops near-duplicate candidates, keeping the higher-scored
// of each pair. Comparison uses stored MinHash signatures.
func (e *Engine) collapse(scored []store.ScoredChunk) []store.ScoredChunk {
	if len(scored) < 2 {
		return scored
	}

	candidates := make([]dedup.Candidate, len(scored))
	byID := make(map[string]store.ScoredChunk, len(scored))
	for i, sc := range scored {
		candidates[i] = dedup.Candidate{
			ID:        sc.Chunk.ChunkID,
			Score:     sc.Score,
			Signature: dedup.SignatureFromBytes(sc.Signature),
		}
		byID[sc.Chunk.ChunkID] = sc
	}

	kept := dedup.CollapseNear(candidates, e.dedupCfg.QueryThreshold)
	e.metrics.Collapsed.Add(int64(len(scored) - len(kept)))

	out := make([]store.ScoredChunk, 0, len(kept))
	for _, c := range kept {
		out = append(out, byID[c.ID])
	}
	return out
}

// buildFilter maps request facets to store filter keys.
func buildFilter(req Request) map[string]any {
	filter := make(map[string]any)
	if req.WeekNumber > 0 {
		filter["week_number"] = req.WeekNumber
	}
	if req.ModuleName != "" {
		filter["module_name"] = req.ModuleName
	}
	if req.FileType != "" {
		filter["file_type"] = req.FileType
	}
	if req.AcademicYear != "" {
		filter["academic_year"] = req.AcademicYear
	}
	if req.DocumentID != "" {
		filter["document_id"] = req.DocumentID
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}
