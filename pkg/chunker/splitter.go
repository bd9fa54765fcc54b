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
)

// Piece is one token-bounded slice of a unit's text.
type Piece struct {
	Text   string
	Tokens int
}

// Splitter cuts text into token-bounded pieces, preferring paragraph and
// sentence boundaries over mid-sentence cuts. Consecutive pieces share
// the configured token overlap.
type Splitter struct {
	counter *TokenCounter
	target  int
	max     int
	overlap int
}

// NewSplitter creates a splitter with the given token bounds.
func NewSplitter(counter *TokenCounter, target, max, overlap int) *Splitter {
	return &Splitter{counter: counter, target: target, max: max, overlap: overlap}
}

// Split cuts text into pieces of at most target tokens (hard ceiling max),
// carrying overlap tokens from each piece into the next.
func (s *Splitter) Split(text string) []Piece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	total := s.counter.Count(text)
	if total <= s.target {
		return []Piece{{Text: text, Tokens: total}}
	}

	// Keep packed content plus the overlap prefix and its separator
	// under the hard ceiling.
	joinTokens := s.counter.Count("\n\n")
	budget := s.target
	if budget+s.overlap+joinTokens > s.max {
		budget = s.max - s.overlap - joinTokens
	}

	segs := s.segments(text, budget)

	var pieces []Piece
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(cur, "\n\n"))
		pieces = append(pieces, Piece{Text: joined, Tokens: s.counter.Count(joined)})
		cur = nil
		curTokens = 0
	}

	for _, seg := range segs {
		segTokens := s.counter.Count(seg)
		// The joiner between packed segments counts against the budget
		// too, or merged pieces can overshoot the ceiling.
		added := segTokens
		if curTokens > 0 {
			added += joinTokens
		}
		if curTokens > 0 && curTokens+added > budget {
			flush()
			added = segTokens
		}
		cur = append(cur, seg)
		curTokens += added
	}
	flush()

	return s.applyOverlap(pieces)
}

// segments breaks text into paragraphs, oversized paragraphs into
// sentences, and oversized sentences into hard token windows.
func (s *Splitter) segments(text string, budget int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if s.counter.Count(para) <= budget {
			out = append(out, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if s.counter.Count(sent) <= budget {
				out = append(out, sent)
				continue
			}
			out = append(out, s.hardSplit(sent, budget)...)
		}
	}
	return out
}

// hardSplit cuts text into fixed token windows. Last resort for content
// with no usable boundaries.
func (s *Splitter) hardSplit(text string, budget int) []string {
	tokens := s.counter.Encode(text)
	var out []string
	for start := 0; start < len(tokens); start += budget {
		end := start + budget
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, strings.TrimSpace(s.counter.Decode(tokens[start:end])))
	}
	return out
}

// applyOverlap prefixes each piece after the first with the trailing
// overlap tokens of its predecessor.
func (s *Splitter) applyOverlap(pieces []Piece) []Piece {
	if s.overlap <= 0 || len(pieces) < 2 {
		return pieces
	}
	out := make([]Piece, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := s.counter.Encode(pieces[i-1].Text)
		start := len(prev) - s.overlap
		if start < 0 {
			start = 0
		}
		tail := strings.TrimSpace(s.counter.Decode(prev[start:]))
		text := tail + "\n" + pieces[i].Text
		out[i] = Piece{Text: text, Tokens: s.counter.Count(text)}
	}
	return out
}

// splitSentences is a simple terminator-based sentence splitter. Good
// enough for boundary preference; the token windows enforce the bounds.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			next := i + 1
			if next >= len(runes) || runes[next] == ' ' || runes[next] == '\n' {
				if s := strings.TrimSpace(b.String()); s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
