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
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
)

// Chunker turns parsed documents into token-bounded chunks. The strategy
// follows the document's unit type: one chunk per slide or section where
// the bounds allow, token-split pages with small-page merging.
type Chunker struct {
	cfg     config.ChunkingConfig
	counter *TokenCounter
	split   *Splitter
}

// New creates a chunker from config.
func New(cfg config.ChunkingConfig) (*Chunker, error) {
	counter, err := NewTokenCounter(cfg.Encoding)
	if err != nil {
		return nil, NewChunkingError("init", "", "failed to initialize token counter", err)
	}
	return &Chunker{
		cfg:     cfg,
		counter: counter,
		split:   NewSplitter(counter, cfg.TargetTokens, cfg.MaxTokens, cfg.OverlapTokens),
	}, nil
}

// Counter exposes the token counter for callers that need raw counts.
func (c *Chunker) Counter() *TokenCounter {
	return c.counter
}

// ChunkDocument cuts a parsed document into chunks with provenance.
func (c *Chunker) ChunkDocument(parsed *document.Parsed) ([]document.Chunk, error) {
	if parsed == nil || len(parsed.Units) == 0 {
		return nil, nil
	}

	var chunks []document.Chunk
	switch parsed.Meta.FileType {
	case document.FileTypePPTX:
		chunks = c.chunkSlides(parsed)
	case document.FileTypePDF:
		chunks = c.chunkPages(parsed)
	case document.FileTypeDOCX:
		chunks = c.chunkSections(parsed)
	default:
		return nil, NewChunkingError(string(parsed.Meta.FileType), parsed.Meta.ID(),
			fmt.Sprintf("no chunking strategy for file type %q", parsed.Meta.FileType), nil)
	}

	docID := parsed.Meta.ID()
	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].ChunkID = document.ChunkID(docID, i)
		chunks[i].DocumentID = docID
		chunks[i].SourceFile = parsed.Meta.FilePath
		chunks[i].FileType = parsed.Meta.FileType
		chunks[i].WeekNumber = parsed.Meta.WeekNumber
		chunks[i].ModuleName = parsed.Meta.ModuleName
		chunks[i].AcademicYear = parsed.Meta.AcademicYear
		chunks[i].CharCount = utf8.RuneCountInString(chunks[i].Content)
		if chunks[i].ExtractionMethod == "" {
			chunks[i].ExtractionMethod = document.ExtractionNative
			chunks[i].ExtractionConfidence = 1
		}
		chunks[i].CreatedAt = now
	}
	return chunks, nil
}

// chunkSlides emits one chunk per slide. Oversized slides split with the
// slide title repeated on every piece.
func (c *Chunker) chunkSlides(parsed *document.Parsed) []document.Chunk {
	var chunks []document.Chunk
	for _, unit := range parsed.Units {
		pieces := c.boundedPieces(unit.Content)
		for i, p := range pieces {
			text := p.Text
			if i > 0 && unit.Title != "" && !strings.HasPrefix(text, "# ") {
				text = "# " + unit.Title + "\n" + text
			}
			chunks = append(chunks, document.Chunk{
				Content:     text,
				Type:        document.ContentTypeSlide,
				Title:       unit.Title,
				SlideNumber: unit.Ordinal,
				Position:    document.PositionFor(i, len(pieces)),
				TokenCount:  c.counter.Count(text),
			})
		}
	}
	return chunks
}

// chunkPages token-splits pages, merging adjacent small pages up to the
// target. Each chunk inherits the most recent heading seen.
func (c *Chunker) chunkPages(parsed *document.Parsed) []document.Chunk {
	var chunks []document.Chunk

	var buf []string
	bufTokens := 0
	bufPage := 0
	heading := ""
	bufMethod := document.ExtractionNative
	bufConfidence := 1.0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n\n"))
		chunks = append(chunks, document.Chunk{
			Content:              text,
			Type:                 document.ContentTypePage,
			Title:                heading,
			PageNumber:           bufPage,
			Position:             document.PositionOnly,
			TokenCount:           c.counter.Count(text),
			ExtractionMethod:     bufMethod,
			ExtractionConfidence: bufConfidence,
		})
		buf = nil
		bufTokens = 0
		bufMethod = document.ExtractionNative
		bufConfidence = 1.0
	}

	for _, unit := range parsed.Units {
		if unit.Title != "" {
			heading = unit.Title
		}
		text := strings.TrimSpace(unit.Content)
		if text == "" && len(parsed.Units) > 1 {
			continue
		}
		tokens := c.counter.Count(text)

		method, confidence := unit.ExtractionMethod, unit.ExtractionConfidence
		if method == "" {
			method, confidence = document.ExtractionNative, 1.0
		}

		if tokens <= c.cfg.TargetTokens {
			// Merge small pages until the target is reached. Merged
			// chunks keep the least confident page's extraction.
			if bufTokens > 0 && bufTokens+tokens > c.cfg.TargetTokens {
				flush()
			}
			if len(buf) == 0 {
				bufPage = unit.Ordinal
			}
			buf = append(buf, text)
			bufTokens += tokens
			if method == document.ExtractionRecognition {
				bufMethod = document.ExtractionRecognition
			}
			if confidence < bufConfidence {
				bufConfidence = confidence
			}
			continue
		}

		flush()
		pieces := c.boundedPieces(text)
		for i, p := range pieces {
			chunks = append(chunks, document.Chunk{
				Content:              p.Text,
				Type:                 document.ContentTypePage,
				Title:                heading,
				PageNumber:           unit.Ordinal,
				Position:             document.PositionFor(i, len(pieces)),
				TokenCount:           p.Tokens,
				ExtractionMethod:     method,
				ExtractionConfidence: confidence,
			})
		}
	}
	flush()
	return chunks
}

// chunkSections emits one chunk per section, splitting oversize sections
// with the heading hierarchy preserved on every piece.
func (c *Chunker) chunkSections(parsed *document.Parsed) []document.Chunk {
	var chunks []document.Chunk
	for _, unit := range parsed.Units {
		pieces := c.boundedPieces(unit.Content)
		for i, p := range pieces {
			chunks = append(chunks, document.Chunk{
				Content:          p.Text,
				Type:             document.ContentTypeSection,
				Title:            unit.Title,
				HeadingHierarchy: unit.HeadingHierarchy,
				SectionIndex:     unit.Ordinal,
				Position:         document.PositionFor(i, len(pieces)),
				TokenCount:       p.Tokens,
			})
		}
	}
	return chunks
}

// boundedPieces splits text and folds trailing runts under min_tokens
// back into their predecessor. Undersized single pieces are kept, never
// dropped.
func (c *Chunker) boundedPieces(text string) []Piece {
	pieces := c.split.Split(text)
	if len(pieces) < 2 {
		return pieces
	}
	last := pieces[len(pieces)-1]
	if last.Tokens < c.cfg.MinTokens {
		prev := pieces[len(pieces)-2]
		merged := prev.Text + "\n" + last.Text
		mergedTokens := c.counter.Count(merged)
		if mergedTokens <= c.cfg.MaxTokens {
			pieces = pieces[:len(pieces)-1]
			pieces[len(pieces)-1] = Piece{Text: merged, Tokens: mergedTokens}
		}
	}
	return pieces
}
