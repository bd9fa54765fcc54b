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

package lexical

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open(filepath.Join(t.TempDir(), "lexical.db"))
	require.NoError(t, err)
	t.Cleanup(func() { x.Close() })
	return x
}

func testChunk(id, docID, path, content string) document.Chunk {
	return document.Chunk{
		ChunkID:     id,
		DocumentID:  docID,
		SourceFile:  path,
		FileType:    document.FileTypePDF,
		Content:     content,
		ContentHash: "hash-" + id,
		WeekNumber:  3,
		ModuleName:  "CS101",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestIndex_UpsertAndSearch(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	chunks := []document.Chunk{
		testChunk("d1_0000", "d1", "notes.pdf", "binary search trees and balanced rotations"),
		testChunk("d1_0001", "d1", "notes.pdf", "sorting algorithms quicksort mergesort"),
		testChunk("d1_0002", "d1", "notes.pdf", "hash tables and collision resolution"),
	}
	require.NoError(t, x.Upsert(ctx, chunks, nil))

	hits, err := x.Search(ctx, "binary search", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "d1_0000", hits[0].Chunk.ChunkID)
	assert.Greater(t, hits[0].Score, 0.0)

	count, err := x.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestIndex_SearchFacetFilter(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	a := testChunk("a_0000", "a", "w1/notes.pdf", "recursion base case")
	a.WeekNumber = 1
	b := testChunk("b_0000", "b", "w2/notes.pdf", "recursion stack frames")
	b.WeekNumber = 2
	require.NoError(t, x.Upsert(ctx, []document.Chunk{a, b}, nil))

	hits, err := x.Search(ctx, "recursion", 10, map[string]any{"week_number": 2})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b_0000", hits[0].Chunk.ChunkID)
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	ch := testChunk("d1_0000", "d1", "notes.pdf", "original text")
	require.NoError(t, x.Upsert(ctx, []document.Chunk{ch}, nil))

	ch.Content = "replaced text"
	require.NoError(t, x.Upsert(ctx, []document.Chunk{ch}, nil))

	count, err := x.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	hits, err := x.Search(ctx, "replaced", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = x.Search(ctx, "original", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_HasContentHash(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, []document.Chunk{
		testChunk("d1_0000", "d1", "notes.pdf", "some content"),
	}, nil))

	ok, err := x.HasContentHash(ctx, "hash-d1_0000")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.HasContentHash(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_ContentHashOwner(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, []document.Chunk{
		testChunk("d1_0000", "d1", "notes.pdf", "some content"),
	}, nil))

	id, ok, err := x.ContentHashOwner(ctx, "hash-d1_0000")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d1_0000", id)

	_, ok, err = x.ContentHashOwner(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_ExistsDocument(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, []document.Chunk{
		testChunk("d1_0000", "d1", "notes.pdf", "some content"),
	}, nil))

	ok, err := x.ExistsDocument(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.ExistsDocument(ctx, "d2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_DeleteStaleByPath(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	// Same file indexed twice under different mtime-derived IDs.
	old := testChunk("old_0000", "old", "week1/slides.pdf", "stale version")
	cur := testChunk("new_0000", "new", "week1/slides.pdf", "current version")
	other := testChunk("o_0000", "o", "week2/slides.pdf", "unrelated")
	require.NoError(t, x.Upsert(ctx, []document.Chunk{old, cur, other}, nil))

	stale, err := x.DeleteStaleByPath(ctx, "week1/slides.pdf", "new")
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, stale)

	ok, err := x.ExistsDocument(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = x.ExistsDocument(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.ExistsDocument(ctx, "o")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndex_GetWithSignatures(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	ch := testChunk("d1_0000", "d1", "notes.pdf", "some content")
	sigs := map[string][]byte{"d1_0000": {1, 2, 3, 4}}
	require.NoError(t, x.Upsert(ctx, []document.Chunk{ch}, sigs))

	got, err := x.Get(ctx, []string{"d1_0000", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, got["d1_0000"].Signature)
	assert.Equal(t, "some content", got["d1_0000"].Chunk.Content)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"binary" OR "search"`, ftsQuery("binary search"))
	assert.Equal(t, `"what's" OR "a+b?"`, ftsQuery(`what's a+b?`))
	assert.Equal(t, "", ftsQuery("   "))
}
