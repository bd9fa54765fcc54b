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
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lectern-ai/lectern/pkg/document"
)

// PPTXParser extracts slide-based units from PowerPoint decks by
// reading the OOXML archive directly.
type PPTXParser struct{}

// CanParse returns true if the file is a PPTX deck.
func (p *PPTXParser) CanParse(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".pptx"
}

// Extensions returns PPTX extensions.
func (p *PPTXParser) Extensions() []string {
	return []string{".pptx"}
}

var (
	slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	notesRe = regexp.MustCompile(`^ppt/notesSlides/notesSlide(\d+)\.xml$`)
)

// Parse extracts one unit per slide: title line, body paragraphs with
// indentation and bullets, tables, and speaker notes.
func (p *PPTXParser) Parse(ctx context.Context, meta document.Meta) (*document.Parsed, error) {
	archive, err := zip.OpenReader(meta.FilePath)
	if err != nil {
		return nil, NewParserError("pptx", meta.FilePath, "failed to open archive", err)
	}
	defer archive.Close()

	slides := make(map[int]*zip.File)
	notes := make(map[int]*zip.File)
	for _, f := range archive.File {
		if m := slideRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides[n] = f
		} else if m := notesRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			notes[n] = f
		}
	}
	if len(slides) == 0 {
		return nil, NewParserError("pptx", meta.FilePath, "no slides in archive", nil)
	}

	numbers := make([]int, 0, len(slides))
	for n := range slides {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	parsed := &document.Parsed{Meta: meta}
	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		slide, err := decodeSlide(slides[n])
		if err != nil {
			return nil, NewParserError("pptx", meta.FilePath, "failed to decode slide "+strconv.Itoa(n), err)
		}

		var noteText string
		if nf, ok := notes[n]; ok {
			if ns, err := decodeSlide(nf); err == nil {
				noteText = notesText(ns)
			}
		}

		title, content := renderSlide(slide, noteText)
		parsed.Units = append(parsed.Units, document.Unit{
			Ordinal: n,
			Title:   title,
			Content: content,
		})
	}
	return parsed, nil
}

// OOXML slide structure, reduced to the parts we render. encoding/xml
// matches local names, so the drawing and presentation namespaces both
// resolve.
type slideXML struct {
	CSld struct {
		SpTree spTreeXML `xml:"spTree"`
	} `xml:"cSld"`
}

type spTreeXML struct {
	Shapes []shapeXML        `xml:"sp"`
	Frames []graphicFrameXML `xml:"graphicFrame"`
}

type shapeXML struct {
	NvSpPr struct {
		NvPr struct {
			Ph *phXML `xml:"ph"`
		} `xml:"nvPr"`
	} `xml:"nvSpPr"`
	TxBody *txBodyXML `xml:"txBody"`
}

type phXML struct {
	Type string `xml:"type,attr"`
}

type txBodyXML struct {
	Paras []paraXML `xml:"p"`
}

type paraXML struct {
	PPr  *pPrXML  `xml:"pPr"`
	Runs []runXML `xml:"r"`
}

type pPrXML struct {
	Lvl    int       `xml:"lvl,attr"`
	BuNone *struct{} `xml:"buNone"`
}

type runXML struct {
	Text string `xml:"t"`
}

type graphicFrameXML struct {
	Graphic struct {
		Data struct {
			Tbl *tblXML `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type tblXML struct {
	Rows []trXML `xml:"tr"`
}

type trXML struct {
	Cells []tcXML `xml:"tc"`
}

type tcXML struct {
	TxBody txBodyXML `xml:"txBody"`
}

func decodeSlide(f *zip.File) (*slideXML, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var slide slideXML
	if err := xml.Unmarshal(data, &slide); err != nil {
		return nil, err
	}
	return &slide, nil
}

func (p paraXML) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return strings.TrimSpace(b.String())
}

// isTitlePh reports whether a placeholder holds the slide title.
func isTitlePh(ph *phXML) bool {
	return ph != nil && (ph.Type == "title" || ph.Type == "ctrTitle")
}

// isChromePh reports placeholders that never carry content: slide
// numbers, footers, datestamps.
func isChromePh(ph *phXML) bool {
	if ph == nil {
		return false
	}
	switch ph.Type {
	case "sldNum", "ftr", "dt":
		return true
	}
	return false
}

// renderSlide assembles the canonical text form of one slide.
func renderSlide(slide *slideXML, noteText string) (title, content string) {
	var lines []string

	for _, sp := range slide.CSld.SpTree.Shapes {
		if sp.TxBody == nil || !isTitlePh(sp.NvSpPr.NvPr.Ph) {
			continue
		}
		for _, para := range sp.TxBody.Paras {
			if t := para.text(); t != "" {
				if title != "" {
					title += " "
				}
				title += t
			}
		}
	}
	if title != "" {
		lines = append(lines, "# "+title)
	}

	for _, sp := range slide.CSld.SpTree.Shapes {
		ph := sp.NvSpPr.NvPr.Ph
		if sp.TxBody == nil || isTitlePh(ph) || isChromePh(ph) {
			continue
		}
		for _, para := range sp.TxBody.Paras {
			text := para.text()
			if text == "" {
				continue
			}
			indent := 0
			bullet := true
			if para.PPr != nil {
				indent = para.PPr.Lvl
				if para.PPr.BuNone != nil {
					bullet = false
				}
			}
			line := strings.Repeat("  ", indent)
			if bullet {
				line += "- "
			}
			lines = append(lines, line+text)
		}
	}

	for _, frame := range slide.CSld.SpTree.Frames {
		tbl := frame.Graphic.Data.Tbl
		if tbl == nil || len(tbl.Rows) == 0 {
			continue
		}
		lines = append(lines, "[Table]")
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var parts []string
				for _, para := range cell.TxBody.Paras {
					if t := para.text(); t != "" {
						parts = append(parts, t)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			lines = append(lines, strings.Join(cells, " | "))
		}
		lines = append(lines, "[/Table]")
	}

	if noteText != "" {
		lines = append(lines, "[Speaker Notes: "+noteText+"]")
	}

	return title, strings.Join(lines, "\n")
}

// notesText pulls the notes body text out of a notes slide, skipping
// slide-number and header placeholders.
func notesText(ns *slideXML) string {
	var parts []string
	for _, sp := range ns.CSld.SpTree.Shapes {
		if sp.TxBody == nil || isChromePh(sp.NvSpPr.NvPr.Ph) {
			continue
		}
		for _, para := range sp.TxBody.Paras {
			if t := para.text(); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}
