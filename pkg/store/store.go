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

// Package store composes the dense vector provider and the lexical
// index into one hybrid store with weighted score fusion.
package store

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/lectern-ai/lectern/pkg/lexical"
	"github.com/lectern-ai/lectern/pkg/vector"
)

// ScoredChunk is one hybrid search result with its score breakdown.
type ScoredChunk struct {
	Chunk document.Chunk

	// Score is the fused relevance in [0, 1].
	Score float64

	// VectorScore and BM25Score are the normalized per-side scores
	// before weighting. Zero when the side did not return the chunk.
	VectorScore float64
	BM25Score   float64

	// Signature is the stored MinHash signature, used for query-time
	// near-duplicate collapsing.
	Signature []byte
}

// HybridStore writes every chunk to both sides and fuses their
// rankings at query time. The lexical index is authoritative for chunk
// payloads; the vector side stores only facets needed for filtering.
type HybridStore struct {
	provider   vector.Provider
	lex        *lexical.Index
	collection string

	vectorWeight float64
	bm25Weight   float64
}

// New creates a hybrid store over the given backends.
func New(provider vector.Provider, lex *lexical.Index, vectorCfg config.VectorStoreConfig, retrievalCfg config.RetrievalConfig) *HybridStore {
	return &HybridStore{
		provider:     provider,
		lex:          lex,
		collection:   vectorCfg.Collection,
		vectorWeight: retrievalCfg.VectorWeight,
		bm25Weight:   retrievalCfg.BM25Weight,
	}
}

// Open builds the full hybrid store from config.
func Open(cfg *config.Config) (*HybridStore, error) {
	provider, err := vector.NewProvider(cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector provider: %w", err)
	}
	lex, err := lexical.Open(cfg.Lexical.Path)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}
	return New(provider, lex, cfg.VectorStore, cfg.Retrieval), nil
}

// Lexical exposes the underlying index for hash lookups during ingest.
func (s *HybridStore) Lexical() *lexical.Index {
	return s.lex
}

// EnsureReady creates the vector collection for the given dimension.
func (s *HybridStore) EnsureReady(ctx context.Context, dimension int) error {
	return s.provider.CreateCollection(ctx, s.collection, dimension)
}

// UpsertBatch writes chunks with their vectors to both sides. vectors
// must be parallel to chunks; signatures may be nil.
func (s *HybridStore) UpsertBatch(ctx context.Context, chunks []document.Chunk, vectors [][]float32, signatures map[string][]byte) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]vector.Doc, len(chunks))
	for i, ch := range chunks {
		docs[i] = vector.Doc{
			ID:     ch.ChunkID,
			Vector: vectors[i],
			Metadata: map[string]any{
				"document_id":   ch.DocumentID,
				"file_path":     ch.SourceFile,
				"file_type":     string(ch.FileType),
				"week_number":   ch.WeekNumber,
				"module_name":   ch.ModuleName,
				"academic_year": ch.AcademicYear,
			},
		}
	}

	if err := s.provider.UpsertBatch(ctx, s.collection, docs); err != nil {
		return fmt.Errorf("vector upsert failed: %w", err)
	}
	if err := s.lex.Upsert(ctx, chunks, signatures); err != nil {
		return fmt.Errorf("lexical upsert failed: %w", err)
	}
	return nil
}

// HybridSearch runs vector and BM25 search concurrently, min-max
// normalizes each side's scores, and fuses them with the configured
// weights. Results are sorted by fused score descending.
func (s *HybridStore) HybridSearch(ctx context.Context, query string, queryVector []float32, topK int, filter map[string]any) ([]ScoredChunk, error) {
	var vecResults []vector.Result
	var lexHits []lexical.Hit

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecResults, err = s.provider.SearchWithFilter(gCtx, s.collection, queryVector, topK, filter)
		if err != nil {
			return fmt.Errorf("vector search failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lexHits, err = s.lex.Search(gCtx, query, topK, filter)
		if err != nil {
			return fmt.Errorf("lexical search failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vecScores := make(map[string]float64, len(vecResults))
	for _, r := range vecResults {
		vecScores[r.ID] = r.Score
	}
	bm25Scores := make(map[string]float64, len(lexHits))
	chunks := make(map[string]lexical.Hit, len(lexHits))
	for _, h := range lexHits {
		bm25Scores[h.Chunk.ChunkID] = h.Score
		chunks[h.Chunk.ChunkID] = h
	}

	normVec := minMaxNormalize(vecScores)
	normBM25 := minMaxNormalize(bm25Scores)
	fused := fuse(normVec, normBM25, s.vectorWeight, s.bm25Weight)

	// Vector-only hits need their payload from the catalog.
	var missing []string
	for id := range fused {
		if _, ok := chunks[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		loaded, err := s.lex.Get(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk payloads: %w", err)
		}
		for id, h := range loaded {
			chunks[id] = h
		}
	}

	out := make([]ScoredChunk, 0, len(fused))
	for id, score := range fused {
		hit, ok := chunks[id]
		if !ok {
			// Present in the vector store but gone from the catalog;
			// a tombstoned document. Skip it.
			continue
		}
		out = append(out, ScoredChunk{
			Chunk:       hit.Chunk,
			Score:       score,
			VectorScore: normVec[id],
			BM25Score:   normBM25[id],
			Signature:   hit.Signature,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// ExistsDocument reports whether the document is already indexed.
func (s *HybridStore) ExistsDocument(ctx context.Context, documentID string) (bool, error) {
	return s.lex.ExistsDocument(ctx, documentID)
}

// DeleteByDocument removes a document's chunks from both sides.
func (s *HybridStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := s.provider.DeleteByFilter(ctx, s.collection, map[string]any{"document_id": documentID}); err != nil {
		return err
	}
	return s.lex.DeleteByDocument(ctx, documentID)
}

// DeleteStaleByPath tombstones chunks indexed for the file under older
// document IDs, on both sides.
func (s *HybridStore) DeleteStaleByPath(ctx context.Context, filePath, keepDocumentID string) error {
	stale, err := s.lex.DeleteStaleByPath(ctx, filePath, keepDocumentID)
	if err != nil {
		return err
	}
	for _, docID := range stale {
		if err := s.provider.DeleteByFilter(ctx, s.collection, map[string]any{"document_id": docID}); err != nil {
			return fmt.Errorf("vector tombstone for %s failed: %w", docID, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks.
func (s *HybridStore) Count(ctx context.Context) (int64, error) {
	return s.lex.Count(ctx)
}

// Close closes both backends.
func (s *HybridStore) Close() error {
	vErr := s.provider.Close()
	lErr := s.lex.Close()
	if vErr != nil {
		return vErr
	}
	return lErr
}
