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

package dedup

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
)

// HashLookup resolves a content hash to the chunk that owns it in the
// index, so duplicates found across runs still point at their
// canonical chunk. The lexical index implements this.
type HashLookup interface {
	ContentHashOwner(ctx context.Context, hash string) (string, bool, error)
}

// Deduplicator runs both dedup stages over chunks: exact duplicates by
// normalized content hash, near duplicates by MinHash/LSH at the ingest
// threshold. It is safe for concurrent use and lives for one ingest run.
type Deduplicator struct {
	cfg    config.DedupConfig
	hasher *MinHasher
	lsh    *LSHIndex
	lookup HashLookup // optional

	mu         sync.Mutex
	seenHashes map[string]string   // content hash -> canonical chunk ID
	groups     map[string][]string // canonical chunk ID -> suppressed chunk IDs

	exactDropped atomic.Int64
	nearDropped  atomic.Int64
	processed    atomic.Int64
}

// New creates a deduplicator. lookup may be nil; then only in-run
// hashes are considered for the exact stage.
func New(cfg config.DedupConfig, lookup HashLookup) *Deduplicator {
	return &Deduplicator{
		cfg:        cfg,
		hasher:     NewMinHasher(cfg.NumPermutations, cfg.ShingleSize),
		lsh:        NewLSHIndex(cfg.NumPermutations, cfg.IngestThreshold),
		lookup:     lookup,
		seenHashes: make(map[string]string),
		groups:     make(map[string][]string),
	}
}

// Hasher exposes the MinHasher, shared with query-time dedup.
func (d *Deduplicator) Hasher() *MinHasher {
	return d.hasher
}

// Process fills ContentHash and SemanticFingerprint on every chunk and
// returns the chunks that survive both stages, along with the per-chunk
// signatures of the survivors. Suppressed chunks get CanonicalChunkID
// set in the input slice so callers can report what replaced them.
func (d *Deduplicator) Process(ctx context.Context, chunks []document.Chunk) ([]document.Chunk, []Signature, error) {
	kept := make([]document.Chunk, 0, len(chunks))
	sigs := make([]Signature, 0, len(chunks))

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		chunk := chunks[i]
		d.processed.Add(1)

		normalized := Normalize(chunk.Content)
		chunk.ContentHash = ContentHash(chunk.Content)
		sig := d.hasher.Sign(normalized)
		chunk.SemanticFingerprint = sig.Fingerprint()

		rep, err := d.exactCanonical(ctx, chunk.ContentHash, chunk.ChunkID)
		if err != nil {
			return nil, nil, err
		}
		if rep != "" {
			d.exactDropped.Add(1)
			chunks[i].CanonicalChunkID = rep
			d.recordDuplicate(rep, chunk.ChunkID)
			slog.Debug("Dropping exact duplicate", "chunk", chunk.ChunkID, "canonical", rep)
			continue
		}

		if near, of := d.isNearDuplicate(sig); near {
			d.nearDropped.Add(1)
			chunks[i].CanonicalChunkID = of
			d.recordDuplicate(of, chunk.ChunkID)
			slog.Debug("Dropping near duplicate", "chunk", chunk.ChunkID, "canonical", of)
			continue
		}

		d.lsh.Add(chunk.ChunkID, sig)
		kept = append(kept, chunk)
		sigs = append(sigs, sig)
	}
	return kept, sigs, nil
}

// exactCanonical returns the canonical chunk ID for an already-seen
// hash, or "" when the chunk is the first with this content. The in-run
// set is checked before the index; a hash found only in the index is
// cached so later in-run duplicates resolve to the indexed owner, not
// to a chunk that was itself suppressed.
func (d *Deduplicator) exactCanonical(ctx context.Context, hash, chunkID string) (string, error) {
	d.mu.Lock()
	if rep, ok := d.seenHashes[hash]; ok {
		d.mu.Unlock()
		return rep, nil
	}
	d.mu.Unlock()

	if d.lookup != nil {
		owner, ok, err := d.lookup.ContentHashOwner(ctx, hash)
		if err != nil {
			return "", err
		}
		if ok {
			d.mu.Lock()
			d.seenHashes[hash] = owner
			d.mu.Unlock()
			return owner, nil
		}
	}

	d.mu.Lock()
	d.seenHashes[hash] = chunkID
	d.mu.Unlock()
	return "", nil
}

func (d *Deduplicator) recordDuplicate(canonical, chunkID string) {
	d.mu.Lock()
	d.groups[canonical] = append(d.groups[canonical], chunkID)
	d.mu.Unlock()
}

// isNearDuplicate confirms LSH candidates against the real Jaccard
// estimate; banding alone over-approximates.
func (d *Deduplicator) isNearDuplicate(sig Signature) (bool, string) {
	for _, id := range d.lsh.Candidates(sig) {
		other, ok := d.lsh.Signature(id)
		if !ok {
			continue
		}
		if Jaccard(sig, other) >= d.cfg.IngestThreshold {
			return true, id
		}
	}
	return false, ""
}

// Stats is a point-in-time copy of dedup counters. DuplicateGroups maps
// each canonical chunk ID to the chunk IDs suppressed in its favor.
type Stats struct {
	Processed       int64               `json:"processed"`
	ExactDropped    int64               `json:"exact_dropped"`
	NearDropped     int64               `json:"near_dropped"`
	DuplicateGroups map[string][]string `json:"duplicate_groups,omitempty"`
}

// Stats returns the current counters.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	groups := make(map[string][]string, len(d.groups))
	for rep, ids := range d.groups {
		groups[rep] = append([]string(nil), ids...)
	}
	d.mu.Unlock()

	return Stats{
		Processed:       d.processed.Load(),
		ExactDropped:    d.exactDropped.Load(),
		NearDropped:     d.nearDropped.Load(),
		DuplicateGroups: groups,
	}
}
