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
	"encoding/xml"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/lectern-ai/lectern/pkg/document"
)

// DOCXParser extracts heading-delimited sections from Word documents.
type DOCXParser struct{}

// CanParse returns true if the file is a DOCX document.
func (p *DOCXParser) CanParse(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".docx"
}

// Extensions returns DOCX extensions.
func (p *DOCXParser) Extensions() []string {
	return []string{".docx"}
}

// Parse splits the document at heading paragraphs. Each section carries
// its heading chain; preamble before the first heading becomes its own
// untitled section.
func (p *DOCXParser) Parse(ctx context.Context, meta document.Meta) (*document.Parsed, error) {
	reader, err := docx.ReadDocxFile(meta.FilePath)
	if err != nil {
		return nil, NewParserError("docx", meta.FilePath, "failed to open file", err)
	}
	defer reader.Close()

	paras, err := decodeDocxParagraphs(reader.Editable().GetContent())
	if err != nil {
		return nil, NewParserError("docx", meta.FilePath, "failed to decode document body", err)
	}

	parsed := &document.Parsed{Meta: meta}

	var (
		stack   []string // enclosing headings, outermost first
		body    []string
		title   string
		ordinal int
	)

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n\n"))
		if content == "" && title == "" {
			body = nil
			return
		}
		hierarchy := make([]string, len(stack))
		copy(hierarchy, stack)
		parsed.Units = append(parsed.Units, document.Unit{
			Ordinal:          ordinal,
			Title:            title,
			HeadingHierarchy: hierarchy,
			Content:          content,
		})
		ordinal++
		body = nil
	}

	for _, para := range paras {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if para.text == "" {
			continue
		}
		if para.headingLevel > 0 {
			flush()
			if para.headingLevel <= len(stack) {
				stack = stack[:para.headingLevel-1]
			}
			stack = append(stack, para.text)
			title = para.text
			continue
		}
		body = append(body, para.text)
	}
	flush()

	return parsed, nil
}

type docxParagraph struct {
	text         string
	headingLevel int // 0 for body text
}

// Reduced word/document.xml structure.
type docxDocumentXML struct {
	Body struct {
		Paras []docxParaXML `xml:"p"`
	} `xml:"body"`
}

type docxParaXML struct {
	PPr *struct {
		PStyle *struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

func decodeDocxParagraphs(content string) ([]docxParagraph, error) {
	var doc docxDocumentXML
	if err := xml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, err
	}

	paras := make([]docxParagraph, 0, len(doc.Body.Paras))
	for _, p := range doc.Body.Paras {
		var b strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Texts {
				b.WriteString(t)
			}
		}
		style := ""
		if p.PPr != nil && p.PPr.PStyle != nil {
			style = p.PPr.PStyle.Val
		}
		paras = append(paras, docxParagraph{
			text:         strings.TrimSpace(b.String()),
			headingLevel: headingLevel(style),
		})
	}
	return paras, nil
}

// headingLevel maps a paragraph style to its heading depth, 0 when the
// style is not a heading.
func headingLevel(style string) int {
	lower := strings.ToLower(style)
	if lower == "title" {
		return 1
	}
	if rest, ok := strings.CutPrefix(lower, "heading"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && n >= 1 && n <= 9 {
			return n
		}
	}
	return 0
}
