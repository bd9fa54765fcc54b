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

// Package ingest runs the document pipeline: discover, parse, chunk,
// enrich, deduplicate, embed, and index. Jobs are tracked in memory
// and an optional filesystem watcher keeps the index current.
package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lectern-ai/lectern/pkg/chunker"
	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/dedup"
	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/lectern-ai/lectern/pkg/embedder"
	"github.com/lectern-ai/lectern/pkg/enrich"
	"github.com/lectern-ai/lectern/pkg/observability"
	"github.com/lectern-ai/lectern/pkg/parser"
	"github.com/lectern-ai/lectern/pkg/store"
)

// Pipeline wires all ingest stages together.
type Pipeline struct {
	cfg      *config.Config
	parsers  *parser.Registry
	chunker  *chunker.Chunker
	enricher *enrich.Enricher
	indexer  *Indexer
	store    *store.HybridStore
	jobs     *JobRegistry
	metrics  *observability.Metrics

	// indexMu serializes the dedup and index stages. Parsing and
	// enrichment run concurrently; the store writes do not.
	indexMu sync.Mutex
}

// NewPipeline builds the pipeline from config and shared backends.
func NewPipeline(cfg *config.Config, st *store.HybridStore, emb embedder.Embedder) (*Pipeline, error) {
	ck, err := chunker.New(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	registry := parser.NewRegistry(parser.PDFOptions{
		Recognizer: parser.NewRecognizer(cfg.Recognition),
	})

	return &Pipeline{
		cfg:      cfg,
		parsers:  registry,
		chunker:  ck,
		enricher: enrich.New(cfg.Enrichment),
		indexer:  NewIndexer(st, emb, cfg.Embedder, cfg.Ingest),
		store:    st,
		jobs:     NewJobRegistry(),
	}, nil
}

// Jobs returns the job registry.
func (p *Pipeline) Jobs() *JobRegistry {
	return p.jobs
}

// SetMetrics attaches prometheus collectors; completed runs fold their
// counts into them.
func (p *Pipeline) SetMetrics(m *observability.Metrics) {
	p.metrics = m
}

// Options scopes an ingest run. The zero value ingests everything
// without reprocessing unchanged documents.
type Options struct {
	// Force reprocesses documents even when already indexed.
	Force bool `json:"force"`

	// SourcePrefix restricts the run to files whose path, relative to
	// the source root, starts with this prefix.
	SourcePrefix string `json:"source_prefix,omitempty"`

	// Week restricts the run to files whose path yields this week
	// number. Zero means no restriction.
	Week int `json:"week,omitempty"`
}

// Start launches an ingest run in the background and returns its job.
func (p *Pipeline) Start(ctx context.Context, opts Options) *Job {
	job := p.jobs.Create()
	go p.run(ctx, job.ID, opts)
	j, _ := p.jobs.Get(job.ID)
	return &j
}

// Run executes an ingest run synchronously and returns the final job.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Job, error) {
	job := p.jobs.Create()
	p.run(ctx, job.ID, opts)

	final, _ := p.jobs.Get(job.ID)
	if final.State == JobFailed {
		return &final, &PipelineError{JobID: final.ID, Message: final.Error}
	}
	return &final, nil
}

func (p *Pipeline) run(ctx context.Context, jobID string, opts Options) {
	p.jobs.Update(jobID, func(j *Job) { j.State = JobRunning })

	metas, err := parser.Discover(ctx, p.cfg.Source)
	if err != nil {
		slog.Error("Discovery failed", "job", jobID, "error", err)
		p.jobs.finish(jobID, JobFailed, err.Error())
		return
	}
	metas = p.scope(metas, opts)
	p.jobs.Update(jobID, func(j *Job) { j.Counts.FilesDiscovered = len(metas) })
	slog.Info("Discovered source files", "job", jobID, "files", len(metas))

	// One deduplicator per run: cross-file duplicates within the run
	// are caught by its LSH index, prior runs by the hash catalog.
	deduper := dedup.New(p.cfg.Dedup, p.store.Lexical())

	sem := make(chan struct{}, p.cfg.Ingest.Workers)
	var wg sync.WaitGroup

	for _, meta := range metas {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(meta document.Meta) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := p.processFile(ctx, jobID, meta, deduper, opts.Force); err != nil {
				slog.Warn("File ingest failed",
					"job", jobID,
					"path", meta.FilePath,
					"error", err)
				p.jobs.Update(jobID, func(j *Job) {
					j.Counts.FilesFailed++
					j.Errors = append(j.Errors, meta.FilePath+": "+err.Error())
				})
			}
		}(meta)
	}
	wg.Wait()

	stats := deduper.Stats()
	p.jobs.Update(jobID, func(j *Job) {
		j.Counts.DuplicatesDropped = int(stats.ExactDropped + stats.NearDropped)
	})

	if err := ctx.Err(); err != nil {
		p.jobs.finish(jobID, JobFailed, err.Error())
		return
	}
	p.jobs.finish(jobID, JobCompleted, "")
	final, _ := p.jobs.Get(jobID)
	if p.metrics != nil {
		p.metrics.RecordJob(
			final.Counts.FilesProcessed,
			final.Counts.FilesFailed,
			final.Counts.ChunksIndexed,
			int(stats.ExactDropped),
			int(stats.NearDropped),
			final.Counts.EmbeddingFailures)
	}
	slog.Info("Ingest run finished",
		"job", jobID,
		"processed", final.Counts.FilesProcessed,
		"skipped", final.Counts.FilesSkipped,
		"failed", final.Counts.FilesFailed,
		"chunks", final.Counts.ChunksIndexed,
		"duplicates", final.Counts.DuplicatesDropped)
}

// scope drops discovered files outside the run's week or path prefix.
// The prefix matches against the path relative to the source root, or
// against the path as discovered.
func (p *Pipeline) scope(metas []document.Meta, opts Options) []document.Meta {
	if opts.SourcePrefix == "" && opts.Week == 0 {
		return metas
	}

	prefix := filepath.ToSlash(opts.SourcePrefix)
	out := metas[:0]
	for _, meta := range metas {
		if opts.Week != 0 && meta.WeekNumber != opts.Week {
			continue
		}
		if prefix != "" {
			rel, err := filepath.Rel(p.cfg.Source.Path, meta.FilePath)
			if err != nil {
				rel = meta.FilePath
			}
			rel = filepath.ToSlash(rel)
			if !strings.HasPrefix(rel, prefix) &&
				!strings.HasPrefix(filepath.ToSlash(meta.FilePath), prefix) {
				continue
			}
		}
		out = append(out, meta)
	}
	return out
}

// processFile runs one file through every stage. Errors here are
// isolated: a bad file never aborts the run.
func (p *Pipeline) processFile(ctx context.Context, jobID string, meta document.Meta, deduper *dedup.Deduplicator, force bool) error {
	docID := meta.ID()

	if !force {
		exists, err := p.store.ExistsDocument(ctx, docID)
		if err != nil {
			return err
		}
		if exists {
			slog.Debug("Skipping unchanged document", "path", meta.FilePath, "id", docID)
			p.jobs.Update(jobID, func(j *Job) { j.Counts.FilesSkipped++ })
			return nil
		}
	}

	parsed, err := p.parsers.ParseFile(ctx, meta.FilePath, p.cfg.Source.Path)
	if err != nil {
		return err
	}

	chunks, err := p.chunker.ChunkDocument(parsed)
	if err != nil {
		return err
	}
	chunks = p.enricher.EnrichAll(ctx, chunks)

	p.indexMu.Lock()
	defer p.indexMu.Unlock()

	// A forced re-run must not see its own previous rows as exact
	// duplicates.
	if force {
		if err := p.store.DeleteByDocument(ctx, docID); err != nil {
			return err
		}
	}

	// Older revisions of this path go first: their rows carry the
	// same content hashes and would shadow the new ones in dedup.
	if err := p.store.DeleteStaleByPath(ctx, meta.FilePath, docID); err != nil {
		return err
	}

	kept, sigs, err := deduper.Process(ctx, chunks)
	if err != nil {
		return err
	}

	sigBytes := make(map[string][]byte, len(kept))
	for i, ch := range kept {
		sigBytes[ch.ChunkID] = sigs[i].Bytes()
	}

	embedFailed, err := p.indexer.Index(ctx, kept, sigBytes)
	if err != nil {
		return err
	}

	p.jobs.Update(jobID, func(j *Job) {
		j.Counts.FilesProcessed++
		j.Counts.ChunksIndexed += len(kept)
		j.Counts.EmbeddingFailures += embedFailed
	})
	return nil
}

// ProcessPath ingests or re-ingests a single file, used by the watcher.
func (p *Pipeline) ProcessPath(ctx context.Context, absPath string) error {
	parsed, err := p.parsers.ParseFile(ctx, absPath, p.cfg.Source.Path)
	if err != nil {
		return err
	}
	docID := parsed.Meta.ID()

	exists, err := p.store.ExistsDocument(ctx, docID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	chunks, err := p.chunker.ChunkDocument(parsed)
	if err != nil {
		return err
	}
	chunks = p.enricher.EnrichAll(ctx, chunks)

	p.indexMu.Lock()
	defer p.indexMu.Unlock()

	// Drop the previous revision first: its rows carry the same
	// content hashes and would shadow the new ones in exact dedup.
	if err := p.store.DeleteStaleByPath(ctx, parsed.Meta.FilePath, docID); err != nil {
		return err
	}

	deduper := dedup.New(p.cfg.Dedup, p.store.Lexical())
	kept, sigs, err := deduper.Process(ctx, chunks)
	if err != nil {
		return err
	}
	sigBytes := make(map[string][]byte, len(kept))
	for i, ch := range kept {
		sigBytes[ch.ChunkID] = sigs[i].Bytes()
	}

	_, err = p.indexer.Index(ctx, kept, sigBytes)
	return err
}

// RemovePath tombstones everything indexed for a deleted file.
func (p *Pipeline) RemovePath(ctx context.Context, absPath string) error {
	p.indexMu.Lock()
	defer p.indexMu.Unlock()
	return p.store.DeleteStaleByPath(ctx, absPath, "")
}

// PipelineError reports a failed ingest run.
type PipelineError struct {
	JobID   string
	Message string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return "ingest job " + e.JobID + " failed: " + e.Message
}
