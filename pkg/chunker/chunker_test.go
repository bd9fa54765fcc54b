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

package chunker

import (
	"strings"
	"testing"
	"time"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
)

func testChunkingConfig() config.ChunkingConfig {
	cfg := config.ChunkingConfig{}
	cfg.SetDefaults()
	return cfg
}

func newTestChunker(t *testing.T, cfg config.ChunkingConfig) *Chunker {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}
	return c
}

func testMeta(ft document.FileType) document.Meta {
	return document.Meta{
		FilePath:   "CS101/week 1/lecture." + string(ft),
		FileType:   ft,
		ModifiedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		WeekNumber: 1,
		ModuleName: "CS101",
	}
}

func TestSplitter_ShortTextIsSinglePiece(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())
	pieces := c.split.Split("A short paragraph about nothing much.")
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(pieces))
	}
}

func TestSplitter_EmptyText(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())
	if pieces := c.split.Split("   \n  "); pieces != nil {
		t.Errorf("expected nil for blank text, got %d pieces", len(pieces))
	}
}

func TestSplitter_RespectsMaxTokens(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	long := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 400)
	pieces := c.split.Split(long)

	if len(pieces) < 2 {
		t.Fatalf("expected long text to split, got %d pieces", len(pieces))
	}
	for i, p := range pieces {
		if p.Tokens > 1000 {
			t.Errorf("piece %d exceeds max tokens: %d", i, p.Tokens)
		}
	}
}

func TestSplitter_ConsecutivePiecesOverlap(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	long := strings.Repeat("Gradient descent minimizes the loss function iteratively. ", 300)
	pieces := c.split.Split(long)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}

	// The second piece must open with text present at the end of the first.
	tail := pieces[0].Text[len(pieces[0].Text)-40:]
	words := strings.Fields(tail)
	if len(words) < 2 {
		t.Fatal("tail too short to check")
	}
	probe := strings.Join(words[1:], " ")
	if !strings.Contains(pieces[1].Text[:minInt(len(pieces[1].Text), 400)], probe) {
		t.Errorf("second piece does not carry overlap from first; probe %q", probe)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func TestSplitter_MergedPiecesStayUnderMaxWhenTargetEqualsMax(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())
	split := NewSplitter(c.counter, 100, 100, 20)

	// Many short paragraphs force packing with a joiner between each
	// pair; the joiner tokens must count against the ceiling.
	long := strings.Repeat("Short paragraph about queues.\n\n", 120)
	pieces := split.Split(long)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	for i, p := range pieces {
		if p.Tokens > 100 {
			t.Errorf("piece %d = %d tokens, exceeds ceiling 100", i, p.Tokens)
		}
	}
}

func TestChunker_OneChunkPerSlide(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypePPTX),
		Units: []document.Unit{
			{Ordinal: 1, Title: "Intro", Content: "# Intro\n- What is a graph"},
			{Ordinal: 2, Title: "Terminology", Content: "# Terminology\n- Vertex\n- Edge"},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Type != document.ContentTypeSlide {
			t.Errorf("chunk %d type = %s, want slide", i, ch.Type)
		}
		if ch.SlideNumber != i+1 {
			t.Errorf("chunk %d slide = %d, want %d", i, ch.SlideNumber, i+1)
		}
		if ch.Position != document.PositionOnly {
			t.Errorf("chunk %d position = %s, want only", i, ch.Position)
		}
	}
}

func TestChunker_OversizeSlideSplitsWithTitleRepeated(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	body := strings.Repeat("Detail about backpropagation and the chain rule. ", 400)
	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypePPTX),
		Units: []document.Unit{
			{Ordinal: 1, Title: "Backprop", Content: "# Backprop\n" + body},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected oversize slide to split, got %d chunks", len(chunks))
	}
	for i, ch := range chunks {
		if !strings.Contains(ch.Content, "Backprop") {
			t.Errorf("chunk %d lost slide title", i)
		}
		if ch.SlideNumber != 1 {
			t.Errorf("chunk %d slide = %d, want 1", i, ch.SlideNumber)
		}
	}
	if chunks[0].Position != document.PositionBeginning {
		t.Errorf("first piece position = %s, want beginning", chunks[0].Position)
	}
	if chunks[len(chunks)-1].Position != document.PositionEnd {
		t.Errorf("last piece position = %s, want end", chunks[len(chunks)-1].Position)
	}
}

func TestChunker_SmallPagesMerge(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypePDF),
		Units: []document.Unit{
			{Ordinal: 1, Content: "Short first page."},
			{Ordinal: 2, Content: "Short second page."},
			{Ordinal: 3, Content: "Short third page."},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected small pages to merge into 1 chunk, got %d", len(chunks))
	}
	if chunks[0].PageNumber != 1 {
		t.Errorf("merged chunk page = %d, want 1", chunks[0].PageNumber)
	}
	for _, want := range []string{"first", "second", "third"} {
		if !strings.Contains(chunks[0].Content, want) {
			t.Errorf("merged chunk missing page containing %q", want)
		}
	}
}

func TestChunker_PagesInheritHeading(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	big := strings.Repeat("Transport layer protocols and congestion control. ", 300)
	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypePDF),
		Units: []document.Unit{
			{Ordinal: 1, Title: "Chapter 3: Transport", Content: big},
			{Ordinal: 2, Content: big},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	for i, ch := range chunks {
		if ch.Title != "Chapter 3: Transport" {
			t.Errorf("chunk %d title = %q, want inherited heading", i, ch.Title)
		}
	}
}

func TestChunker_SectionsKeepHierarchy(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	body := strings.Repeat("Normalization reduces redundancy in relational schemas. ", 300)
	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypeDOCX),
		Units: []document.Unit{
			{Ordinal: 0, Title: "Normal Forms", HeadingHierarchy: []string{"Databases", "Design", "Normal Forms"}, Content: body},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected oversize section to split, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.HeadingHierarchy) != 3 {
			t.Errorf("chunk %d lost heading hierarchy: %v", i, ch.HeadingHierarchy)
		}
		if ch.SectionIndex != 0 {
			t.Errorf("chunk %d section = %d, want 0", i, ch.SectionIndex)
		}
	}
}

func TestChunker_ChunkIdentityAndProvenance(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypePPTX),
		Units: []document.Unit{
			{Ordinal: 1, Title: "A", Content: "# A\nalpha"},
			{Ordinal: 2, Title: "B", Content: "# B\nbeta"},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	docID := parsed.Meta.ID()
	for i, ch := range chunks {
		if ch.DocumentID != docID {
			t.Errorf("chunk %d document_id = %q, want %q", i, ch.DocumentID, docID)
		}
		if ch.ChunkID != document.ChunkID(docID, i) {
			t.Errorf("chunk %d id = %q, want %q", i, ch.ChunkID, document.ChunkID(docID, i))
		}
		if ch.WeekNumber != 1 || ch.ModuleName != "CS101" {
			t.Errorf("chunk %d missing path metadata", i)
		}
		if ch.TokenCount <= 0 {
			t.Errorf("chunk %d has no token count", i)
		}
	}
}

func TestChunker_FillsCharCountAndExtractionDefaults(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypePPTX),
		Units: []document.Unit{
			{Ordinal: 1, Title: "A", Content: "# A\nalpha"},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	ch := chunks[0]
	if ch.CharCount != len([]rune(ch.Content)) {
		t.Errorf("char_count = %d, want %d", ch.CharCount, len([]rune(ch.Content)))
	}
	if ch.ExtractionMethod != document.ExtractionNative {
		t.Errorf("extraction_method = %q, want native", ch.ExtractionMethod)
	}
	if ch.ExtractionConfidence != 1 {
		t.Errorf("extraction_confidence = %v, want 1", ch.ExtractionConfidence)
	}
}

func TestChunker_PagesCarryExtractionProvenance(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())

	parsed := &document.Parsed{
		Meta: testMeta(document.FileTypePDF),
		Units: []document.Unit{
			{Ordinal: 1, Content: "Native page text.",
				ExtractionMethod: document.ExtractionNative, ExtractionConfidence: 1},
			{Ordinal: 2, Content: "Recognized page text.",
				ExtractionMethod: document.ExtractionRecognition, ExtractionConfidence: 0.83},
		},
	}

	chunks, err := c.ChunkDocument(parsed)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected the small pages to merge, got %d chunks", len(chunks))
	}
	if chunks[0].ExtractionMethod != document.ExtractionRecognition {
		t.Errorf("merged chunk method = %q, want recognition when any page was recognized",
			chunks[0].ExtractionMethod)
	}
	if chunks[0].ExtractionConfidence != 0.83 {
		t.Errorf("merged chunk confidence = %v, want the least confident page's 0.83",
			chunks[0].ExtractionConfidence)
	}
}

func TestChunker_EmptyDocument(t *testing.T) {
	c := newTestChunker(t, testChunkingConfig())
	chunks, err := c.ChunkDocument(&document.Parsed{Meta: testMeta(document.FileTypePDF)})
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty document, got %d", len(chunks))
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("12345678"); got != 2 {
		t.Errorf("EstimateTokens = %d, want 2", got)
	}
}

func BenchmarkSplitter_Split(b *testing.B) {
	c, err := New(testChunkingConfig())
	if err != nil {
		b.Skipf("token encoding unavailable: %v", err)
	}
	text := strings.Repeat("The attention mechanism weighs token interactions. ", 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.split.Split(text)
	}
}
