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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/lectern-ai/lectern/pkg/document"
)

// PDFOptions configures scanned-page handling.
type PDFOptions struct {
	// Recognizer handles pages with no extractable text. Nil disables
	// the fallback; such pages keep empty content.
	Recognizer *Recognizer

	// ScannedTextMin is the extracted-text length below which a page is
	// treated as scanned.
	ScannedTextMin int
}

// PDFParser extracts page-based units from PDF files.
type PDFParser struct {
	opts PDFOptions
}

// NewPDFParser creates a PDF parser.
func NewPDFParser(opts PDFOptions) *PDFParser {
	if opts.ScannedTextMin == 0 {
		opts.ScannedTextMin = 32
	}
	return &PDFParser{opts: opts}
}

// CanParse returns true if the file is a PDF.
func (p *PDFParser) CanParse(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".pdf"
}

// Extensions returns PDF extensions.
func (p *PDFParser) Extensions() []string {
	return []string{".pdf"}
}

// Parse extracts one unit per page. Pages whose extracted text is below
// the scanned threshold go through the recognizer when one is
// configured; otherwise they are kept with empty content so provenance
// survives.
func (p *PDFParser) Parse(ctx context.Context, meta document.Meta) (*document.Parsed, error) {
	file, err := os.Open(meta.FilePath)
	if err != nil {
		return nil, NewParserError("pdf", meta.FilePath, "failed to open file", err)
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, meta.SizeBytes)
	if err != nil {
		return nil, NewParserError("pdf", meta.FilePath, "failed to parse file", err)
	}

	parsed := &document.Parsed{Meta: meta}
	totalPages := reader.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("Page text extraction failed",
				"file", meta.FilePath, "page", pageNum, "error", err)
			text = ""
		}
		text = strings.TrimSpace(text)

		method, confidence := document.ExtractionNative, 1.0
		if len(text) < p.opts.ScannedTextMin {
			parsed.Meta.IsScanned = true
			confidence = 0
			text, method, confidence = p.recognizePage(ctx, meta.FilePath, pageNum, text, confidence)
		}

		parsed.Units = append(parsed.Units, document.Unit{
			Ordinal:              pageNum,
			Title:                detectHeading(text),
			Content:              text,
			ExtractionMethod:     method,
			ExtractionConfidence: confidence,
		})
	}

	parsed.Meta.ExtractionMethod = document.ExtractionNative
	for _, u := range parsed.Units {
		if u.ExtractionMethod == document.ExtractionRecognition {
			parsed.Meta.ExtractionMethod = document.ExtractionRecognition
			break
		}
	}

	return parsed, nil
}

// recognizePage asks the recognition service for page text. Failures
// and low-confidence results fall back to whatever was extracted, as
// native text with zero confidence.
func (p *PDFParser) recognizePage(ctx context.Context, filePath string, pageNum int, extracted string, confidence float64) (string, string, float64) {
	if p.opts.Recognizer == nil {
		return extracted, document.ExtractionNative, confidence
	}

	text, conf, err := p.opts.Recognizer.RecognizePage(ctx, filePath, pageNum)
	if err != nil {
		slog.Warn("Recognition failed for scanned page",
			"file", filePath, "page", pageNum, "error", err)
		return extracted, document.ExtractionNative, confidence
	}
	if text == "" {
		return extracted, document.ExtractionNative, confidence
	}
	return text, document.ExtractionRecognition, conf
}

// detectHeading returns the first line of a page when it reads like a
// heading: short, not sentence-terminated, and either numbered or
// title-cased.
func detectHeading(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 80 {
		return ""
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") {
		return ""
	}

	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "chapter ") || strings.HasPrefix(lower, "lecture ") ||
		strings.HasPrefix(lower, "week ") || strings.HasPrefix(lower, "unit ") {
		return line
	}
	if r := []rune(line)[0]; unicode.IsDigit(r) {
		return line
	}

	// Title case check: most words capitalized.
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 10 {
		return ""
	}
	capped := 0
	for _, w := range words {
		if r := []rune(w)[0]; unicode.IsUpper(r) {
			capped++
		}
	}
	if capped >= len(words)-1 {
		return line
	}
	return ""
}
