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

package document

import (
	"testing"
	"time"
)

func TestMeta_ID_StableForSameRevision(t *testing.T) {
	mod := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Meta{FilePath: "week 1/lecture.pdf", ModifiedAt: mod}
	b := Meta{FilePath: "week 1/lecture.pdf", ModifiedAt: mod}

	if a.ID() != b.ID() {
		t.Errorf("same path and mtime must produce same ID: %s vs %s", a.ID(), b.ID())
	}
	if len(a.ID()) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a.ID()))
	}
}

func TestMeta_ID_ChangesWithModificationTime(t *testing.T) {
	a := Meta{FilePath: "week 1/lecture.pdf", ModifiedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	b := Meta{FilePath: "week 1/lecture.pdf", ModifiedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}

	if a.ID() == b.ID() {
		t.Error("newer modification time must produce a new document ID")
	}
}

func TestChunkID_Format(t *testing.T) {
	got := ChunkID("abcd1234abcd1234", 7)
	want := "abcd1234abcd1234_0007"
	if got != want {
		t.Errorf("ChunkID = %q, want %q", got, want)
	}
}

func TestPositionFor(t *testing.T) {
	tests := []struct {
		index, total int
		want         Position
	}{
		{0, 1, PositionOnly},
		{0, 3, PositionBeginning},
		{1, 3, PositionMiddle},
		{2, 3, PositionEnd},
		{0, 2, PositionBeginning},
		{1, 2, PositionEnd},
	}
	for _, tt := range tests {
		if got := PositionFor(tt.index, tt.total); got != tt.want {
			t.Errorf("PositionFor(%d, %d) = %s, want %s", tt.index, tt.total, got, tt.want)
		}
	}
}

func TestPathMeta(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantWeek   int
		wantModule string
		wantYear   string
	}{
		{
			name:       "week dir names the module",
			path:       "CS101/Week 3/lecture.pdf",
			wantWeek:   3,
			wantModule: "Week 3",
		},
		{
			name:       "week dir wins over generic content dir",
			path:       "x/Week 2/content/neural.pdf",
			wantWeek:   2,
			wantModule: "Week 2",
		},
		{
			name:       "no week falls back to first non-generic dir",
			path:       "APAC Schedule/doc.docx",
			wantModule: "APAC Schedule",
		},
		{
			name:       "week without space",
			path:       "week7/slides.pptx",
			wantWeek:   7,
			wantModule: "week7",
		},
		{
			name:       "generic dirs skipped",
			path:       "data/documents/Networks/week 2/notes.docx",
			wantWeek:   2,
			wantModule: "week 2",
		},
		{
			name:       "academic year",
			path:       "2025-26/Databases/week 1/intro.pdf",
			wantWeek:   1,
			wantModule: "week 1",
			wantYear:   "2025-26",
		},
		{
			name:       "week in file name only",
			path:       "Algorithms/week 12 summary.pdf",
			wantWeek:   12,
			wantModule: "Algorithms",
		},
		{
			name: "nothing derivable",
			path: "files/misc.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week, module, year := PathMeta(tt.path)
			if week != tt.wantWeek {
				t.Errorf("week = %d, want %d", week, tt.wantWeek)
			}
			if module != tt.wantModule {
				t.Errorf("module = %q, want %q", module, tt.wantModule)
			}
			if year != tt.wantYear {
				t.Errorf("year = %q, want %q", year, tt.wantYear)
			}
		})
	}
}

func TestFileTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want FileType
		ok   bool
	}{
		{"a/b/lecture.PDF", FileTypePDF, true},
		{"slides.pptx", FileTypePPTX, true},
		{"notes.docx", FileTypeDOCX, true},
		{"legacy.ppt", FileTypePPT, true},
		{"legacy.doc", FileTypeDOC, true},
		{"readme.md", "", false},
	}
	for _, tt := range tests {
		got, ok := FileTypeFor(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("FileTypeFor(%q) = (%s, %v), want (%s, %v)", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestChunk_Locator(t *testing.T) {
	tests := []struct {
		chunk Chunk
		want  string
	}{
		{Chunk{Type: ContentTypeSlide, SlideNumber: 4}, "slide 4"},
		{Chunk{Type: ContentTypePage, PageNumber: 12}, "page 12"},
		{Chunk{Type: ContentTypeSection, SectionIndex: 2}, "section 2"},
	}
	for _, tt := range tests {
		if got := tt.chunk.Locator(); got != tt.want {
			t.Errorf("Locator() = %q, want %q", got, tt.want)
		}
	}
}
