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

package search

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/dedup"
	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/lectern-ai/lectern/pkg/lexical"
	"github.com/lectern-ai/lectern/pkg/store"
	"github.com/lectern-ai/lectern/pkg/vector"
)

// stubEmbedder maps texts containing a key substring to a fixed vector.
type stubEmbedder struct {
	vectors map[string][]float32
	fail    bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, fmt.Errorf("embedder down")
	}
	for key, vec := range s.vectors {
		if strings.Contains(strings.ToLower(text), key) {
			return vec, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }
func (s *stubEmbedder) Model() string  { return "stub" }

func newTestEngine(t *testing.T, emb *stubEmbedder) (*Engine, *store.HybridStore) {
	t.Helper()

	provider, err := vector.NewChromemProvider("")
	require.NoError(t, err)
	lex, err := lexical.Open(filepath.Join(t.TempDir(), "lexical.db"))
	require.NoError(t, err)

	vectorCfg := config.VectorStoreConfig{}
	vectorCfg.SetDefaults()
	retrievalCfg := config.RetrievalConfig{}
	retrievalCfg.SetDefaults()
	dedupCfg := config.DedupConfig{}
	dedupCfg.SetDefaults()

	st := store.New(provider, lex, vectorCfg, retrievalCfg)
	t.Cleanup(func() { st.Close() })

	return NewEngine(st, emb, retrievalCfg, dedupCfg), st
}

func searchChunk(id, docID, content string, week int) document.Chunk {
	return document.Chunk{
		ChunkID:     id,
		DocumentID:  docID,
		SourceFile:  docID + ".pdf",
		FileType:    document.FileTypePDF,
		Content:     content,
		ContentHash: "hash-" + id,
		WeekNumber:  week,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestEngine_QueryValidation(t *testing.T) {
	e, _ := newTestEngine(t, &stubEmbedder{})

	_, err := e.Search(context.Background(), Request{Query: "a"})
	assert.Error(t, err)

	_, err = e.Search(context.Background(), Request{Query: strings.Repeat("x", 10001)})
	assert.Error(t, err)
}

func TestEngine_Search(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"sorting": {1, 0, 0},
		"graphs":  {0, 1, 0},
	}}
	e, st := newTestEngine(t, emb)
	ctx := context.Background()

	chunks := []document.Chunk{
		searchChunk("d1_0000", "d1", "sorting algorithms quicksort", 1),
		searchChunk("d2_0000", "d2", "graphs and traversal", 2),
	}
	require.NoError(t, st.UpsertBatch(ctx, chunks, [][]float32{{1, 0, 0}, {0, 1, 0}}, nil))

	resp, err := e.Search(ctx, Request{Query: "sorting algorithms", TopK: 2})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "d1_0000", resp.Results[0].Chunk.ChunkID)
	assert.GreaterOrEqual(t, resp.QueryTimeMs, int64(0))
	assert.Equal(t, 2, resp.TotalHits)
}

func TestEngine_FacetFilter(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"recursion": {1, 0, 0}}}
	e, st := newTestEngine(t, emb)
	ctx := context.Background()

	a := searchChunk("a_0000", "a", "recursion base case", 1)
	b := searchChunk("b_0000", "b", "recursion stack frames", 2)
	require.NoError(t, st.UpsertBatch(ctx, []document.Chunk{a, b}, [][]float32{{1, 0, 0}, {1, 0, 0}}, nil))

	resp, err := e.Search(ctx, Request{Query: "recursion", WeekNumber: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "b_0000", resp.Results[0].Chunk.ChunkID)
}

func TestEngine_CollapsesNearDuplicates(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"loops": {1, 0, 0}}}
	e, st := newTestEngine(t, emb)
	ctx := context.Background()

	dedupCfg := config.DedupConfig{}
	dedupCfg.SetDefaults()
	hasher := dedup.NewMinHasher(dedupCfg.NumPermutations, dedupCfg.ShingleSize)

	text := "for loops iterate a fixed number of times over a range of values"
	a := searchChunk("a_0000", "a", text, 1)
	b := searchChunk("b_0000", "b", text, 1)
	sigs := map[string][]byte{
		"a_0000": hasher.Sign(dedup.Normalize(text)).Bytes(),
		"b_0000": hasher.Sign(dedup.Normalize(text)).Bytes(),
	}
	require.NoError(t, st.UpsertBatch(ctx, []document.Chunk{a, b},
		[][]float32{{1, 0, 0}, {1, 0, 0}}, sigs))

	resp, err := e.Search(ctx, Request{Query: "loops", TopK: 5})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1, "identical chunks must collapse to one")
	assert.EqualValues(t, 1, e.Metrics().Collapsed.Load())
}

func TestScope_Blocklist(t *testing.T) {
	e, _ := newTestEngine(t, &stubEmbedder{})
	sc := NewScope(e, config.ScopeConfig{
		BlocklistKeywords:  []string{"medical advice"},
		IndicatorThreshold: 0.3,
		DefaultThreshold:   0.5,
		ProbeTopK:          3,
	})

	res := sc.Check(context.Background(), "Can you give me Medical Advice about headaches?")
	assert.False(t, res.InScope)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
}

func TestScope_InScopeWhenIndexed(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"sorting": {1, 0, 0}}}
	e, st := newTestEngine(t, emb)
	ctx := context.Background()

	require.NoError(t, st.UpsertBatch(ctx,
		[]document.Chunk{searchChunk("d1_0000", "d1", "sorting algorithms quicksort", 1)},
		[][]float32{{1, 0, 0}}, nil))

	cfg := config.ScopeConfig{}
	cfg.SetDefaults()
	sc := NewScope(e, cfg)

	res := sc.Check(ctx, "explain sorting algorithms")
	assert.True(t, res.InScope)
	assert.Greater(t, res.Confidence, 0.5)
}

func TestScope_OutOfScopeOnEmptyIndex(t *testing.T) {
	e, _ := newTestEngine(t, &stubEmbedder{})
	cfg := config.ScopeConfig{}
	cfg.SetDefaults()
	sc := NewScope(e, cfg)

	res := sc.Check(context.Background(), "quantum basket weaving")
	assert.False(t, res.InScope)
}

func TestScope_PermissiveOnProbeFailure(t *testing.T) {
	e, _ := newTestEngine(t, &stubEmbedder{fail: true})
	cfg := config.ScopeConfig{}
	cfg.SetDefaults()
	sc := NewScope(e, cfg)

	res := sc.Check(context.Background(), "anything at all")
	assert.True(t, res.InScope)
	assert.InDelta(t, 0.2, res.Confidence, 1e-9)
}
