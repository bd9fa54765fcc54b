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

// Package document defines the records that flow through the ingestion
// pipeline: parsed documents, their units (pages, slides, sections), and
// the indexed chunk with full provenance.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// FileType identifies a supported source document format.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypePPTX FileType = "pptx"
	FileTypeDOCX FileType = "docx"

	// Legacy binary formats. Discovered and routed to the pipeline so
	// their rejection surfaces as a per-file parse error rather than a
	// silent skip; no parser can read them.
	FileTypePPT FileType = "ppt"
	FileTypeDOC FileType = "doc"
)

// ContentType identifies the structural unit a chunk was cut from.
type ContentType string

const (
	ContentTypeSlide   ContentType = "slide"
	ContentTypePage    ContentType = "page"
	ContentTypeSection ContentType = "section"
)

// Extraction methods recorded on page units and their chunks.
const (
	ExtractionNative      = "native"
	ExtractionRecognition = "recognition-service"
)

// Position describes where a chunk sits within its source unit.
type Position string

const (
	PositionOnly      Position = "only"
	PositionBeginning Position = "beginning"
	PositionMiddle    Position = "middle"
	PositionEnd       Position = "end"
)

// ContentTypeFor maps a file type to the unit type its parser produces.
func ContentTypeFor(ft FileType) ContentType {
	switch ft {
	case FileTypePPTX:
		return ContentTypeSlide
	case FileTypePDF:
		return ContentTypePage
	default:
		return ContentTypeSection
	}
}

// Meta describes a source file as discovered on disk.
type Meta struct {
	FilePath   string    `json:"file_path"`
	FileType   FileType  `json:"file_type"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`

	// Derived from the relative path, zero values when absent.
	WeekNumber   int    `json:"week_number,omitempty"`
	ModuleName   string `json:"module_name,omitempty"`
	AcademicYear string `json:"academic_year,omitempty"`

	// Set by the parser: true when any page fell below the native text
	// threshold, and the dominant extraction method for the document.
	IsScanned        bool   `json:"is_scanned,omitempty"`
	ExtractionMethod string `json:"extraction_method,omitempty"`
}

// ID derives the stable document identity for this file revision.
//
// A path re-ingested with a newer modification time produces a different
// ID, which is what makes tombstoning of the old revision possible.
func (m *Meta) ID() string {
	sum := sha256.Sum256([]byte(m.FilePath + ":" + m.ModifiedAt.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])[:16]
}

// Unit is one structural piece of a parsed document: a slide, a page, or
// a heading-delimited section.
type Unit struct {
	// Ordinal is 1-based for slides and pages, 0-based for sections.
	Ordinal int

	// Title is the slide title, the most recent page heading, or the
	// section heading. May be empty.
	Title string

	// HeadingHierarchy is the chain of enclosing headings, outermost
	// first. Only populated for section units.
	HeadingHierarchy []string

	Content string

	// How the text was obtained. Populated for page units; slides and
	// sections are always native.
	ExtractionMethod     string
	ExtractionConfidence float64
}

// Parsed is the output of a parser: the source metadata plus its units.
type Parsed struct {
	Meta  Meta
	Units []Unit
}

// Chunk is the indexed record. Every field needed to cite the source is
// carried on the chunk itself.
type Chunk struct {
	ChunkID    string      `json:"chunk_id"`
	DocumentID string      `json:"document_id"`
	Content    string      `json:"content"`
	Type       ContentType `json:"content_type"`

	SourceFile string   `json:"source_file"`
	FileType   FileType `json:"file_type"`

	WeekNumber   int    `json:"week_number,omitempty"`
	ModuleName   string `json:"module_name,omitempty"`
	AcademicYear string `json:"academic_year,omitempty"`

	Title            string   `json:"title,omitempty"`
	HeadingHierarchy []string `json:"heading_hierarchy,omitempty"`

	// Exactly one of these locates the chunk, depending on Type.
	SlideNumber  int `json:"slide_number,omitempty"`
	PageNumber   int `json:"page_number,omitempty"`
	SectionIndex int `json:"section_index,omitempty"`

	Position   Position `json:"position_in_section"`
	TokenCount int      `json:"token_count"`
	CharCount  int      `json:"char_count"`

	// How the text left the source file, and the recognition service's
	// confidence when it was involved.
	ExtractionMethod     string  `json:"extraction_method,omitempty"`
	ExtractionConfidence float64 `json:"extraction_confidence,omitempty"`

	ContentHash         string `json:"content_hash,omitempty"`
	SemanticFingerprint string `json:"semantic_fingerprint,omitempty"`

	// CanonicalChunkID points a suppressed duplicate at its retained
	// representative. Always empty on stored chunks.
	CanonicalChunkID string `json:"canonical_chunk_id,omitempty"`

	Keywords []string `json:"keywords,omitempty"`
	Entities []Entity `json:"entities,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Intent   string   `json:"intent,omitempty"`

	EmbeddingFailed bool      `json:"embedding_failed,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Entity is a typed surface form found by enrichment.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// ChunkID builds the stable chunk identity from document identity and
// chunk ordinal within the document.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_%04d", documentID, ordinal)
}

// Locator renders the human-readable position of the chunk in its source,
// used when assembling citations.
func (c *Chunk) Locator() string {
	switch c.Type {
	case ContentTypeSlide:
		return fmt.Sprintf("slide %d", c.SlideNumber)
	case ContentTypePage:
		return fmt.Sprintf("page %d", c.PageNumber)
	default:
		return fmt.Sprintf("section %d", c.SectionIndex)
	}
}

// PositionFor computes a chunk's position given its index among the
// pieces cut from one unit.
func PositionFor(index, total int) Position {
	switch {
	case total <= 1:
		return PositionOnly
	case index == 0:
		return PositionBeginning
	case index == total-1:
		return PositionEnd
	default:
		return PositionMiddle
	}
}
