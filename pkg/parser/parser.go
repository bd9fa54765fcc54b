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

// Package parser extracts structural units from course material files:
// pages from PDFs, slides from PPTX decks, heading-delimited sections
// from DOCX documents.
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lectern-ai/lectern/pkg/document"
)

// Parser extracts units from one file format.
type Parser interface {
	// CanParse returns true if this parser handles the given file.
	CanParse(filePath string) bool

	// Parse extracts the document's units.
	Parse(ctx context.Context, meta document.Meta) (*document.Parsed, error)

	// Extensions returns the file extensions this parser supports.
	Extensions() []string
}

// Registry dispatches files to their parser by extension.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry with the built-in parsers. A nil
// recognizer disables the scanned-page fallback.
func NewRegistry(pdfOpts PDFOptions) *Registry {
	return &Registry{
		parsers: []Parser{
			NewPDFParser(pdfOpts),
			&PPTXParser{},
			&DOCXParser{},
		},
	}
}

// Register appends a parser, tried after the built-ins.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// find returns the first parser that accepts the path.
func (r *Registry) find(filePath string) Parser {
	for _, p := range r.parsers {
		if p.CanParse(filePath) {
			return p
		}
	}
	return nil
}

// ParseFile stats the file, derives its metadata relative to root, and
// dispatches to the matching parser.
func (r *Registry) ParseFile(ctx context.Context, filePath, root string) (*document.Parsed, error) {
	p := r.find(filePath)
	if p == nil {
		ext := strings.ToLower(filepath.Ext(filePath))
		if ext == ".ppt" || ext == ".doc" {
			return nil, NewParserError("registry", filePath,
				fmt.Sprintf("legacy %s format is not readable, convert the file to %sx", ext, ext), nil)
		}
		return nil, NewParserError("registry", filePath,
			fmt.Sprintf("no parser for file type %q", filePath), nil)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, NewParserError("registry", filePath, "failed to stat file", err)
	}

	ft, ok := document.FileTypeFor(filePath)
	if !ok {
		return nil, NewParserError("registry", filePath, "unsupported file type", nil)
	}

	meta := document.Meta{
		FilePath:   filePath,
		FileType:   ft,
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}
	document.ApplyPathMeta(&meta, root)

	return p.Parse(ctx, meta)
}

// Extensions returns every extension some registered parser supports.
func (r *Registry) Extensions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range r.parsers {
		for _, ext := range p.Extensions() {
			if !seen[ext] {
				seen[ext] = true
				out = append(out, ext)
			}
		}
	}
	return out
}
