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

// Package enrich attaches keywords, entities, topics, and intent to
// chunks using deterministic, dependency-free scoring.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
)

// Enricher enriches chunks concurrently under a bounded worker pool.
// Enrichment failures never fail the pipeline: the chunk passes through
// unenriched and the failure is counted.
type Enricher struct {
	cfg      config.EnrichmentConfig
	failures atomic.Int64
}

// New creates an enricher.
func New(cfg config.EnrichmentConfig) *Enricher {
	return &Enricher{cfg: cfg}
}

// EnrichChunk fills the enrichment fields of a single chunk.
func (e *Enricher) EnrichChunk(chunk *document.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panic: %v", r)
		}
	}()

	chunk.Keywords = Keywords(chunk.Content, e.cfg.MaxKeywords)
	chunk.Entities = Entities(chunk.Content)
	chunk.Topics = Topics(chunk.Content, e.cfg.MaxTopics)
	chunk.Intent = Intent(chunk.Content)
	return nil
}

// EnrichAll enriches chunks in place with bounded concurrency.
func (e *Enricher) EnrichAll(ctx context.Context, chunks []document.Chunk) []document.Chunk {
	if e.cfg.Enabled != nil && !*e.cfg.Enabled {
		return chunks
	}

	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup

	for i := range chunks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(chunk *document.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := e.EnrichChunk(chunk); err != nil {
				e.failures.Add(1)
				slog.Warn("Enrichment failed, chunk passes through unenriched",
					"chunk", chunk.ChunkID, "error", err)
			}
		}(&chunks[i])
	}
	wg.Wait()
	return chunks
}

// Failures returns the number of enrichment failures so far.
func (e *Enricher) Failures() int64 {
	return e.failures.Load()
}
