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

package ingest

import (
	"context"
	"log/slog"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/lectern-ai/lectern/pkg/embedder"
	"github.com/lectern-ai/lectern/pkg/store"
)

// Indexer embeds chunks and writes them to the hybrid store. Retry
// lives here, not in the embedder clients, so there is exactly one
// backoff layer around each batch.
type Indexer struct {
	store     *store.HybridStore
	embedder  embedder.Embedder
	retryer   *Retryer
	batchSize int
	maxChars  int
}

// NewIndexer creates an indexer.
func NewIndexer(st *store.HybridStore, emb embedder.Embedder, embedCfg config.EmbedderConfig, ingestCfg config.IngestConfig) *Indexer {
	return &Indexer{
		store:     st,
		embedder:  emb,
		retryer:   NewRetryer(embedCfg.Retry),
		batchSize: ingestCfg.BatchSize,
		maxChars:  embedCfg.MaxChars,
	}
}

// Index embeds and stores chunks in batches. When a batch's embedding
// fails after all retries, its chunks are written with zero vectors and
// flagged, keeping them lexically searchable. Returns the number of
// chunks whose embedding failed.
func (ix *Indexer) Index(ctx context.Context, chunks []document.Chunk, signatures map[string][]byte) (int, error) {
	failed := 0

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = embedder.Truncate(embedText(ch), ix.maxChars)
		}

		vectors, err := DoWithResult(ctx, ix.retryer, "embed batch", func() ([][]float32, error) {
			return ix.embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			slog.Warn("Embedding failed permanently, indexing with zero vectors",
				"chunks", len(batch),
				"error", err)
			vectors = make([][]float32, len(batch))
			for i := range vectors {
				vectors[i] = embedder.ZeroVector(ix.embedder.Dimension())
			}
			for i := range batch {
				batch[i].EmbeddingFailed = true
			}
			failed += len(batch)
		}

		if err := ix.store.UpsertBatch(ctx, batch, vectors, signatures); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

// embedText is what actually gets embedded: the slide or section title
// prefixed onto the content, so short chunks keep their context.
func embedText(ch document.Chunk) string {
	if ch.Title != "" {
		return ch.Title + "\n" + ch.Content
	}
	return ch.Content
}
