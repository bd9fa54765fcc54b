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

package parser

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lectern-ai/lectern/pkg/config"
)

const sampleSlideXML = `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:sp>
        <p:nvSpPr><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
        <p:txBody><a:p><a:r><a:t>Graph Traversal</a:t></a:r></a:p></p:txBody>
      </p:sp>
      <p:sp>
        <p:nvSpPr><p:nvPr><p:ph type="body"/></p:nvPr></p:nvSpPr>
        <p:txBody>
          <a:p><a:r><a:t>Breadth-first search</a:t></a:r></a:p>
          <a:p><a:pPr lvl="1"/><a:r><a:t>Uses a queue</a:t></a:r></a:p>
          <a:p><a:pPr><a:buNone/></a:pPr><a:r><a:t>No bullet here</a:t></a:r></a:p>
        </p:txBody>
      </p:sp>
      <p:graphicFrame>
        <a:graphic><a:graphicData>
          <a:tbl>
            <a:tr><a:tc><a:txBody><a:p><a:r><a:t>Algo</a:t></a:r></a:p></a:txBody></a:tc>
                  <a:tc><a:txBody><a:p><a:r><a:t>Cost</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
            <a:tr><a:tc><a:txBody><a:p><a:r><a:t>BFS</a:t></a:r></a:p></a:txBody></a:tc>
                  <a:tc><a:txBody><a:p><a:r><a:t>O(V+E)</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
          </a:tbl>
        </a:graphicData></a:graphic>
      </p:graphicFrame>
    </p:spTree>
  </p:cSld>
</p:sld>`

func TestRenderSlide(t *testing.T) {
	var slide slideXML
	if err := xml.Unmarshal([]byte(sampleSlideXML), &slide); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	title, content := renderSlide(&slide, "Mention the interactive demo")

	if title != "Graph Traversal" {
		t.Errorf("title = %q, want %q", title, "Graph Traversal")
	}

	wantLines := []string{
		"# Graph Traversal",
		"- Breadth-first search",
		"  - Uses a queue",
		"No bullet here",
		"[Table]",
		"Algo | Cost",
		"BFS | O(V+E)",
		"[/Table]",
		"[Speaker Notes: Mention the interactive demo]",
	}
	got := strings.Split(content, "\n")
	if len(got) != len(wantLines) {
		t.Fatalf("content lines = %d, want %d:\n%s", len(got), len(wantLines), content)
	}
	for i, want := range wantLines {
		if got[i] != want {
			t.Errorf("line %d = %q, want %q", i, got[i], want)
		}
	}
}

const sampleDocxXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Course handbook preamble.</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Databases</w:t></w:r></w:p>
    <w:p><w:r><w:t>Relational model intro.</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Normalization</w:t></w:r></w:p>
    <w:p><w:r><w:t>First normal form text.</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Transactions</w:t></w:r></w:p>
    <w:p><w:r><w:t>ACID properties.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDecodeDocxParagraphs_Sections(t *testing.T) {
	paras, err := decodeDocxParagraphs(sampleDocxXML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(paras) != 7 {
		t.Fatalf("paragraphs = %d, want 7", len(paras))
	}
	if paras[1].headingLevel != 1 || paras[1].text != "Databases" {
		t.Errorf("para 1 = %+v, want Heading1 Databases", paras[1])
	}
	if paras[3].headingLevel != 2 || paras[3].text != "Normalization" {
		t.Errorf("para 3 = %+v, want Heading2 Normalization", paras[3])
	}
	if paras[2].headingLevel != 0 {
		t.Errorf("body paragraph misread as heading: %+v", paras[2])
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading3", 3},
		{"Heading9", 9},
		{"Title", 1},
		{"Heading10", 0},
		{"Normal", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := headingLevel(tt.style); got != tt.want {
			t.Errorf("headingLevel(%q) = %d, want %d", tt.style, got, tt.want)
		}
	}
}

func TestDetectHeading(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"chapter line", "Chapter 3: Transport Layer\nbody text", "Chapter 3: Transport Layer"},
		{"numbered", "2.1 Sliding Windows\nmore", "2.1 Sliding Windows"},
		{"title case", "Memory Management Basics\nThe allocator...", "Memory Management Basics"},
		{"sentence", "This is a full sentence that ends here.\nnext", ""},
		{"empty", "", ""},
		{"lowercase prose", "the following sections cover memory\nand more", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectHeading(tt.text); got != tt.want {
				t.Errorf("detectHeading = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPatternFilter(t *testing.T) {
	pf := NewPatternFilter("/src", []string{"*.pdf", "*.pptx"}, []string{"**/drafts/**", "*.tmp"})

	if !pf.ShouldInclude("/src/week 1/lecture.pdf") {
		t.Error("pdf must be included")
	}
	if pf.ShouldInclude("/src/week 1/notes.txt") {
		t.Error("txt must not match includes")
	}
	if !pf.ShouldExclude("/src/drafts/old.pdf") {
		t.Error("drafts dir must be excluded")
	}
	if !pf.ShouldExclude("/src/a/b.tmp") {
		t.Error("tmp extension must be excluded")
	}
	if pf.ShouldExclude("/src/week 2/slides.pptx") {
		t.Error("regular deck must not be excluded")
	}
}

func TestPatternFilter_EmptyIncludesAcceptAll(t *testing.T) {
	pf := NewPatternFilter("/src", nil, nil)
	if !pf.ShouldInclude("/src/anything.docx") {
		t.Error("empty include set must accept everything")
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	mk := func(rel string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mk("CS101/week 1/lecture.pdf")
	mk("CS101/week 2/slides.pptx")
	mk("CS101/readme.txt")
	mk(".hidden/secret.pdf")
	mk("tmp/scratch.docx")

	cfg := config.SourceConfig{Path: root}
	cfg.SetDefaults()

	metas, err := Discover(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(metas) != 2 {
		paths := make([]string, len(metas))
		for i, m := range metas {
			paths[i] = m.FilePath
		}
		t.Fatalf("discovered %d files, want 2: %v", len(metas), paths)
	}
	for _, m := range metas {
		if !strings.HasPrefix(m.ModuleName, "week ") {
			t.Errorf("module = %q, want the week directory", m.ModuleName)
		}
		if m.WeekNumber == 0 {
			t.Errorf("week not derived for %s", m.FilePath)
		}
	}
}

func TestRegistry_UnsupportedExtension(t *testing.T) {
	reg := NewRegistry(PDFOptions{})
	_, err := reg.ParseFile(context.Background(), "/tmp/notes.md", "/tmp")
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	var perr *ParserError
	if !errors.As(err, &perr) {
		t.Errorf("expected ParserError, got %T", err)
	}
}

func testRecognizer(host string) *Recognizer {
	cfg := config.RecognitionConfig{Host: host}
	cfg.SetDefaults()
	cfg.Retry.MaxAttempts = 1
	return NewRecognizer(cfg)
}

func TestRecognizer_ReportsServiceConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":       "Recognized slide text",
			"confidence": 0.91,
		})
	}))
	defer srv.Close()

	text, conf, err := testRecognizer(srv.URL).RecognizePage(context.Background(), "scan.pdf", 1)
	if err != nil {
		t.Fatalf("RecognizePage: %v", err)
	}
	if text != "Recognized slide text" {
		t.Errorf("text = %q", text)
	}
	if conf != 0.91 {
		t.Errorf("confidence = %v, want 0.91", conf)
	}
}

func TestRecognizer_BelowFloorReturnsEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":       "garbled",
			"confidence": 0.05,
		})
	}))
	defer srv.Close()

	text, conf, err := testRecognizer(srv.URL).RecognizePage(context.Background(), "scan.pdf", 1)
	if err != nil {
		t.Fatalf("RecognizePage: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty below the confidence floor", text)
	}
	if conf != 0.05 {
		t.Errorf("confidence = %v, want the reported 0.05", conf)
	}
}

func TestRegistry_LegacyFormatsFailWithGuidance(t *testing.T) {
	reg := NewRegistry(PDFOptions{})
	for _, path := range []string{"/tmp/deck.ppt", "/tmp/notes.doc"} {
		_, err := reg.ParseFile(context.Background(), path, "/tmp")
		if err == nil {
			t.Fatalf("expected error for %s", path)
		}
		var perr *ParserError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ParserError for %s, got %T", path, err)
		}
		if !strings.Contains(err.Error(), "convert") {
			t.Errorf("error for %s should suggest converting: %v", path, err)
		}
	}
}
